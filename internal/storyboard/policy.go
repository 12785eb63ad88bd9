// internal/storyboard/policy.go
package storyboard

// RetryPolicy parameterizes the completion loop: continuation batch size,
// the hard iteration bound, and nothing else. Tests inject small bounds.
type RetryPolicy struct {
	BatchSize     int
	MaxIterations int
}

// DefaultRetryPolicy returns the production bounds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BatchSize:     14,
		MaxIterations: 10,
	}
}

// normalized backfills non-positive fields.
func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.BatchSize <= 0 {
		p.BatchSize = def.BatchSize
	}
	if p.MaxIterations <= 0 {
		p.MaxIterations = def.MaxIterations
	}
	return p
}
