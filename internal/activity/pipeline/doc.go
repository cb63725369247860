// Package pipeline wires the activity stages into one chunk processor.
//
// A [Pipeline] owns a type registry, a classifier, a deduplicator, a
// running-state tracker and an event history. Each call to
// [Pipeline.ProcessChunk] runs one chunk of raw terminal output through
// them to completion:
//
//	raw chunk -> normalize -> lines -> classify (+ end signals)
//	          -> dedup -> tracker starts / bulk stops -> history -> bus
//
// Results are published on the shared [event.Bus]:
//
//   - [event.ActivityBatchEvent] once per chunk that emitted events
//   - [event.ItemStateEvent] for every start, stop and timeout
//   - [event.RegistryRefreshedEvent] after every registry rebuild
//
// Out-of-band status reports enter through [Pipeline.HandleStatus] and
// update the same tracker, so terminal output and status hooks agree on
// which items are active.
//
// # Usage
//
//	p, _ := pipeline.New(pipeline.Config{
//	    Bus:     bus,
//	    Sources: cat.Sources(),
//	}, pipeline.WithItemTimeout(10*time.Second))
//	defer p.Close()
//	_ = p.Start(ctx)
//	events := p.ProcessChunk("● /commit(Create a git commit)\n")
//
// Bus handlers run synchronously inside ProcessChunk and must not call
// ProcessChunk or HandleStatus themselves.
package pipeline
