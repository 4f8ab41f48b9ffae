package integral

// Option configures a Pipeline during creation.
//
// Example:
//
//	// Exclusive scan (default)
//	p, err := integral.New(b, m, 1280, 720)
//
//	// Inclusive scan, ready for BoxIntegral queries
//	p, err := integral.New(b, m, 1280, 720, integral.WithInclusive(true))
type Option func(*options)

// options holds optional configuration for Pipeline creation.
type options struct {
	inclusive bool
	label     string
}

// defaultOptions returns the default pipeline options.
func defaultOptions() options {
	return options{
		inclusive: false,
		label:     "integral",
	}
}

// WithInclusive selects the initial scan mode. Inclusive output at (x, y)
// includes the source value at (x, y); exclusive output does not.
func WithInclusive(inclusive bool) Option {
	return func(o *options) {
		o.inclusive = inclusive
	}
}

// WithLabel sets the prefix of the debug labels given to intermediate
// buffers and batches.
func WithLabel(label string) Option {
	return func(o *options) {
		if label != "" {
			o.label = label
		}
	}
}
