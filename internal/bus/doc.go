// Package bus provides in-process publish/subscribe buses for typed,
// partially bound events.
//
// A Bus keeps one SpecificBus per event type, created on first use. Each
// SpecificBus owns the subscriber store of its type; all of them share
// the bus dispatcher and therefore its single worker.
//
// # Usage
//
//	reg := event.NewRegistry()
//	ping := reg.MustDeclare("Ping", event.F("name", event.String))
//
//	b := bus.New("main")
//	defer b.Close(ctx)
//
//	cb := store.NewCallback("logger", func(e *event.Event) { ... })
//	_ = b.Subscribe(ping.New(), cb)                      // every Ping
//	_ = b.Subscribe(ping.New().MustSet("name", "x"), cb) // only name=x
//
//	b.Post(ping.New().MustSet("name", "x")) // delivered on the worker
//	b.Call(ping.New().MustSet("name", "y")) // delivered before Call returns
//
// # Posters
//
// Bus.Poster binds a partial template and caches the subscriptions that
// may match it. Poster.Post merges its argument with the template, so
// posting many events that differ in a few fields is cheap.
//
// # Systems
//
// A System names buses. Install replaces an existing bus of the same name,
// Uninstall closes one, and Main returns the distinguished main bus.
// Default returns a process-wide System with the main bus installed.
package bus
