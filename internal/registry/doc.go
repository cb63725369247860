// Package registry maintains a time-bounded snapshot of the names the
// assistant CLI can invoke (MCP servers, plugins, skills, agents) so that a
// bare bulleted name in terminal output can be resolved to a concrete kind.
//
// # Main Types
//
//   - [Registry]: the snapshot, its TTL and the refresh machinery
//   - [Sources]: the four collaborators a refresh pulls from
//   - [Entry]: one known name, namespaced by kind via [ItemID]
//
// # Refresh
//
// [Registry.Refresh] replaces the whole snapshot. Sources are queried
// concurrently; a source that errors or panics contributes nothing for its
// kind and the others still apply. Concurrent refreshes collapse into one.
// Lookups against an expired snapshot answer immediately from the old data
// and start a refresh in the background.
//
// # Tie-break
//
// When the same display name is registered under several kinds,
// [Registry.Resolve] prefers MCP, then Plugin, then Skill, then Agent.
//
// # Dynamic Entries
//
// [Registry.MarkDynamic] records names observed in terminal output. These
// entries live until the next refresh replaces the snapshot; callers that
// want them to persist re-mark them from a [WithOnRefresh] hook.
package registry
