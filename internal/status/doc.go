// Package status carries start and stop reports that arrive outside the
// terminal stream, typically written by CLI hooks.
//
// Reports are stored one JSON object per line in an inbox file:
//
//	{"event":"start","id":"agent__reviewer","displayName":"reviewer","kind":"agent","timestamp":"2025-01-01T12:00:00Z"}
//
// [Parse] is tolerant: it accepts Unix millisecond timestamps, "name" and
// "type" as aliases, un-namespaced ids, and free text such as
// "started agent reviewer". [Watcher] tails the inbox with fsnotify and
// hands each parsed report to a callback; unparseable lines are dropped.
package status
