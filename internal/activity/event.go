// Package activity defines the event model shared by the stages of the
// terminal-output pipeline.
package activity

import (
	"maps"
	"time"

	"github.com/Iron-Ham/cclens/internal/registry"
)

// Kind classifies an Event.
type Kind string

const (
	KindToolCall     Kind = "tool_call"
	KindSkillCall    Kind = "skill_call"
	KindAgentCall    Kind = "agent_call"
	KindPluginCall   Kind = "plugin_call"
	KindMCPCall      Kind = "mcp_call"
	KindUserMessage  Kind = "user_message"
	KindPlanProgress Kind = "plan_progress"
	KindOther        Kind = "other"
)

// Detail keys carried in Event.Details.
const (
	DetailSkill     = "skill"
	DetailAgent     = "agent"
	DetailPlugin    = "plugin"
	DetailMCP       = "mcp"
	DetailMCPTool   = "mcp_tool"
	DetailTool      = "tool"
	DetailStep      = "step"
	DetailCompleted = "completed"
	DetailNumber    = "number"
	DetailRaw       = "raw"
	DetailItemID    = "item_id"
)

// ItemKind maps a start-type event kind to the registry kind of the item it
// names. Other kinds map to registry.KindUnknown.
func (k Kind) ItemKind() registry.Kind {
	switch k {
	case KindSkillCall:
		return registry.KindSkill
	case KindAgentCall:
		return registry.KindAgent
	case KindPluginCall:
		return registry.KindPlugin
	case KindMCPCall:
		return registry.KindMCP
	default:
		return registry.KindUnknown
	}
}

// IsStart reports whether events of this kind announce an item starting.
func (k Kind) IsStart() bool {
	return k.ItemKind() != registry.KindUnknown
}

// NameKey returns the Details key holding the item name for start-type
// kinds, or "" for others.
func (k Kind) NameKey() string {
	switch k {
	case KindSkillCall:
		return DetailSkill
	case KindAgentCall:
		return DetailAgent
	case KindPluginCall:
		return DetailPlugin
	case KindMCPCall:
		return DetailMCP
	default:
		return ""
	}
}

// CallKind maps a registry kind to the event kind announcing it. Unknown
// kinds map to KindAgentCall.
func CallKind(k registry.Kind) Kind {
	switch k {
	case registry.KindMCP:
		return KindMCPCall
	case registry.KindPlugin:
		return KindPluginCall
	case registry.KindSkill:
		return KindSkillCall
	default:
		return KindAgentCall
	}
}

// Event is one classified line of output. Events are values; the Details
// map is never mutated after NewEvent returns.
type Event struct {
	Kind      Kind              `json:"kind"`
	Timestamp time.Time         `json:"timestamp"`
	Content   string            `json:"content"`
	Details   map[string]string `json:"details,omitempty"`
}

// NewEvent builds an Event, copying details.
func NewEvent(kind Kind, at time.Time, content string, details map[string]string) Event {
	return Event{
		Kind:      kind,
		Timestamp: at,
		Content:   content,
		Details:   maps.Clone(details),
	}
}

// Detail returns Details[key], or "" when absent.
func (e Event) Detail(key string) string {
	return e.Details[key]
}

// ItemName returns the name of the item a start-type event announces.
func (e Event) ItemName() string {
	if key := e.Kind.NameKey(); key != "" {
		return e.Details[key]
	}
	return ""
}

// ItemID returns the namespaced id of the announced item, or "".
func (e Event) ItemID() string {
	return e.Details[DetailItemID]
}
