package registry

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNoSources is returned by Refresh when the registry was built without
// any source collaborators.
var ErrNoSources = errors.New("registry: no sources configured")

// DefaultTTL is how long a snapshot is served before a lookup triggers a
// background refresh.
const DefaultTTL = 30 * time.Second

// Kind identifies what sort of executable unit a name refers to.
type Kind string

const (
	KindMCP     Kind = "mcp"
	KindPlugin  Kind = "plugin"
	KindSkill   Kind = "skill"
	KindAgent   Kind = "agent"
	KindUnknown Kind = "unknown"
)

// Kinds lists the concrete kinds in tie-break priority order, highest first.
func Kinds() []Kind {
	return []Kind{KindMCP, KindPlugin, KindSkill, KindAgent}
}

// priority ranks kinds for name collisions; lower wins.
func (k Kind) priority() int {
	switch k {
	case KindMCP:
		return 0
	case KindPlugin:
		return 1
	case KindSkill:
		return 2
	case KindAgent:
		return 3
	default:
		return 4
	}
}

// Valid reports whether k is one of the concrete kinds.
func (k Kind) Valid() bool {
	return k.priority() < 4
}

// ParseKind converts a case-insensitive kind name. It returns KindUnknown
// and false for anything that is not a concrete kind.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return KindUnknown, false
	}
	return k, true
}

// Origin records how an entry came to be known.
type Origin string

const (
	OriginFile    Origin = "file"    // Discovered from configuration on disk
	OriginBuiltin Origin = "builtin" // Shipped with the CLI
	OriginDynamic Origin = "dynamic" // Observed in terminal output
)

// Item is a single name reported by a source collaborator.
type Item struct {
	Name     string
	Origin   Origin
	Metadata map[string]string
}

// Lister supplies the current list of items of one kind. Items returned
// alongside an error are still registered, so a source can report the
// entries it read before hitting a malformed one.
type Lister interface {
	List(ctx context.Context) ([]Item, error)
}

// ListerFunc adapts a function to the Lister interface.
type ListerFunc func(ctx context.Context) ([]Item, error)

// List calls f.
func (f ListerFunc) List(ctx context.Context) ([]Item, error) {
	return f(ctx)
}

// Sources groups the four collaborators a refresh pulls from. Nil fields
// are skipped.
type Sources struct {
	MCP     Lister
	Plugins Lister
	Skills  Lister
	Agents  Lister
}

// ordered returns the sources paired with their kind in refresh order.
func (s Sources) ordered() []sourceSlot {
	return []sourceSlot{
		{kind: KindMCP, lister: s.MCP},
		{kind: KindPlugin, lister: s.Plugins},
		{kind: KindSkill, lister: s.Skills},
		{kind: KindAgent, lister: s.Agents},
	}
}

type sourceSlot struct {
	kind   Kind
	lister Lister
}

// Entry is one known name in the snapshot.
type Entry struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Kind        Kind              `json:"kind"`
	Origin      Origin            `json:"origin"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ItemID returns the namespaced identifier for name under kind, e.g.
// "agent__reviewer".
func ItemID(kind Kind, name string) string {
	return string(kind) + idSeparator + name
}

const idSeparator = "__"

// ParseItemID splits an identifier produced by ItemID. The name part may
// itself contain the separator (mcp__server__tool yields server__tool).
func ParseItemID(id string) (Kind, string, bool) {
	prefix, name, ok := strings.Cut(id, idSeparator)
	if !ok || name == "" {
		return KindUnknown, "", false
	}
	kind, valid := ParseKind(prefix)
	if !valid {
		return KindUnknown, "", false
	}
	return kind, name, true
}

// Option configures a Registry.
type Option func(*Registry)
