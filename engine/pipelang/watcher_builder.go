package pipelang

// WatcherBuilderOption is a functional option for configuring a Watcher.
type WatcherBuilderOption func(*Watcher)

// WithReloadCallback calls fn after every reload with the parse result.
//
// Parameters:
//   - fn: the callback, run on the watcher goroutine
//
// Returns:
//   - WatcherBuilderOption: option function to apply
func WithReloadCallback(fn func(err error)) WatcherBuilderOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}
