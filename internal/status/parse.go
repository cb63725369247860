package status

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/Iron-Ham/cclens/internal/registry"
	"github.com/Iron-Ham/cclens/internal/util"
)

// wireReport mirrors Report but accepts the timestamp as RFC 3339 text or
// as Unix milliseconds.
type wireReport struct {
	Event       string `json:"event"`
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Type        string `json:"type"`
	Timestamp   any    `json:"timestamp"`
}

// freeTextPattern extracts "<verb> ... <kind> <name>" from unstructured
// hook output, e.g. "started agent code-reviewer" or "stop: skill=commit".
var freeTextPattern = regexp.MustCompile(
	`(?i)\b(start(?:ed|ing)?|stop(?:ped|ping)?|end(?:ed)?|done)\b.*?\b(agent|skill|plugin|mcp)\b[\s:=]+["']?([\w:.@/-]+)`)

// Parse decodes one status message. JSON objects are decoded first; when
// that fails the message is scanned as free text. Messages that yield
// nothing usable return an error wrapping ErrUnparseable.
func Parse(data []byte) (Report, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Report{}, fmt.Errorf("%w: empty message", ErrUnparseable)
	}

	if data[0] == '{' {
		if r, err := parseJSON(data); err == nil {
			return r, nil
		}
	}

	if r, ok := parseFreeText(string(data)); ok {
		return r, nil
	}
	return Report{}, fmt.Errorf("%w: %q", ErrUnparseable, util.Prefix(string(data), 80))
}

func parseJSON(data []byte) (Report, error) {
	var w wireReport
	if err := sonic.Unmarshal(data, &w); err != nil {
		return Report{}, err
	}

	r := Report{
		Event:       EventType(w.Event),
		ID:          w.ID,
		DisplayName: firstNonEmpty(w.DisplayName, w.Name),
		Kind:        registry.Kind(strings.ToLower(firstNonEmpty(w.Kind, w.Type))),
		Timestamp:   parseTimestamp(w.Timestamp),
	}
	return r.Normalize()
}

func parseFreeText(text string) (Report, bool) {
	m := freeTextPattern.FindStringSubmatch(text)
	if m == nil {
		return Report{}, false
	}
	r, err := Report{
		Event: EventType(m[1]),
		ID:    strings.TrimRight(m[3], ".,;:"),
		Kind:  registry.Kind(strings.ToLower(m[2])),
	}.Normalize()
	if err != nil {
		return Report{}, false
	}
	return r, true
}

// parseTimestamp returns the zero time for anything it cannot read; the
// receiver substitutes its own clock.
func parseTimestamp(v any) time.Time {
	switch ts := v.(type) {
	case float64:
		return time.UnixMilli(int64(ts))
	case string:
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			return t
		}
		if ms, err := strconv.ParseInt(ts, 10, 64); err == nil {
			return time.UnixMilli(ms)
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
