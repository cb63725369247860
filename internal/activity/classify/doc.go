// Package classify maps single lines of cleaned terminal output to typed
// activity events.
//
// # Rule Cascade
//
// Rules are tried in a fixed order and the first match wins:
//
//  1. Bulleted slash name ("● /commit(...)"): always a skill call.
//  2. Bulleted MCP name ("● mcp__github__create_issue(...)" or
//     "● github - create_issue (MCP)(...)"): always an MCP call; the server
//     is fed back to the registry as a dynamic entry.
//  3. Bulleted bare name ("● reviewer(...)"): resolved through the registry,
//     defaulting to an agent call when the name is unknown.
//  4. "[skill] name: action" and "[agent] name: action".
//  5. "[ToolName] action": a tool call.
//  6. Checkbox plan steps ("☒ 2. Write tests"); completion comes from the
//     glyph alone.
//
// User input echoes ("> ...") never produce events.
//
// # Passive Discovery
//
// Every line is also scanned for "<name>_result_<word>", which reveals MCP
// servers that never appear as bulleted markers. Short names and a small
// stoplist of generic words are ignored. Callers drain new names with
// [Classifier.TakeNewDiscoveries] and merge them into the registry.
//
// # End Signals
//
// [Classifier.IsEndSignal] recognizes the phrases the CLI prints when some
// unit finishes without saying which; see [EndSignalPatterns].
package classify
