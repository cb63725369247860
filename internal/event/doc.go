// Package event provides a synchronous publish/subscribe bus that decouples
// the activity pipeline from whatever renders its output.
//
// # Main Types
//
//   - [Bus]: registers handlers and dispatches events to them
//   - [Event]: interface implemented by every published notification
//   - [ActivityBatchEvent]: the classified, de-duplicated events of one chunk
//   - [ItemStateEvent]: an item started or stopped
//   - [RegistryRefreshedEvent]: the type registry rebuilt its snapshot
//
// # Thread Safety
//
// Subscribe, Unsubscribe and Publish may be called from any goroutine.
// Handlers run on the publishing goroutine. Item stops caused by timeouts
// are published from timer goroutines, so handlers must synchronize their
// own state. A handler that panics is logged and does not affect other
// handlers.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//	bus.Subscribe(event.TypeItemStarted, func(e event.Event) {
//		started := e.(event.ItemStateEvent)
//		fmt.Println("running:", started.Change.Item.DisplayName)
//	})
//
// # Event Type Naming Convention
//
// Event types use "category.action": "activity.batch", "item.started",
// "item.stopped", "registry.refreshed".
package event
