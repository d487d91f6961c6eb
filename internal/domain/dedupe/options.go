package dedupe

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize bounds the number of remembered keys; maxSize <= 0 disables the bound.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}

// WithEvictHook is called with every key dropped to respect the size bound.
// It runs under the deduper lock and must not call back into it.
func WithEvictHook(fn func(key string)) Option {
	return func(d *inMemoryDeduper) {
		d.onEvict = fn
	}
}
