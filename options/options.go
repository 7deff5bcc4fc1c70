// Package options provides the generic functional option mechanism used by
// dbx constructors.
package options

// Option interface contains functions that should be implemented by any custom
// option to qualify as a constructor option for T.
// Example:
// ```
//
//	type timeoutOpt struct{ timeout time.Duration }
//	func (o *timeoutOpt) Apply(c *Client) {
//		c.timeout = o.timeout
//	}
//	func (o *timeoutOpt) OptionName() string {
//		return "timeout"
//	}
//
// ```
type Option[T any] interface {
	// Apply applies the option to the target value.
	Apply(*T)

	// OptionName returns the name of the option.
	OptionName() string
}

// ApplyOptions applies the given options to target, skipping nil entries.
func ApplyOptions[T any](target *T, opts ...Option[T]) {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.Apply(target)
	}
}
