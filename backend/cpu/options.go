package cpu

// Option configures a Backend during creation.
type Option func(*options)

// options holds optional configuration for Backend creation.
type options struct {
	workers int
}

// defaultOptions returns the default backend options.
func defaultOptions() options {
	return options{
		workers: 0, // GOMAXPROCS
	}
}

// WithWorkers sets the number of worker goroutines.
// Zero or a negative value selects GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}
