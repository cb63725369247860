package classify

import (
	"regexp"
	"slices"
	"strings"
	"sync"
)

// MinDiscoveryLength is the shortest identifier accepted by the passive
// result-pattern scan.
const MinDiscoveryLength = 4

// DiscoveryStoplist holds generic words that look like identifiers in
// "<name>_result_<word>" but never name an MCP server.
var DiscoveryStoplist = []string{
	"tool", "function", "call", "test", "mock", "fake", "data",
	"user", "task", "bash", "read", "write", "edit",
}

var resultPattern = regexp.MustCompile(`(\w+)_result_\w+`)

// discoverySet accumulates MCP server names seen in output. It is read by
// registry refresh hooks on other goroutines, hence the lock.
type discoverySet struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	fresh []string
	stop  map[string]struct{}
}

func newDiscoverySet() *discoverySet {
	stop := make(map[string]struct{}, len(DiscoveryStoplist))
	for _, w := range DiscoveryStoplist {
		stop[w] = struct{}{}
	}
	return &discoverySet{seen: make(map[string]struct{}), stop: stop}
}

// scan extracts candidate names from every "<name>_result_<word>" in line.
func (d *discoverySet) scan(line string) {
	if !strings.Contains(line, "_result_") {
		return
	}
	for _, m := range resultPattern.FindAllStringSubmatch(line, -1) {
		d.add(serverName(m[1]))
	}
}

// serverName reduces "mcp__github" or "github__search" to "github".
func serverName(ident string) string {
	ident = strings.TrimPrefix(ident, "mcp__")
	if head, _, ok := strings.Cut(ident, "__"); ok {
		return head
	}
	return ident
}

func (d *discoverySet) add(name string) {
	name = strings.Trim(name, "_")
	if len(name) < MinDiscoveryLength {
		return
	}
	if _, skip := d.stop[strings.ToLower(name)]; skip {
		return
	}
	d.record(name)
}

// record stores name without the heuristics that guard the passive scan.
// Explicit MCP markers go straight here.
func (d *discoverySet) record(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[name]; ok {
		return
	}
	d.seen[name] = struct{}{}
	d.fresh = append(d.fresh, name)
}

func (d *discoverySet) all() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.seen))
	for name := range d.seen {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func (d *discoverySet) take() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.fresh
	d.fresh = nil
	return out
}
