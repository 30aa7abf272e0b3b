package retry

import (
	"fmt"
	"time"
)

// Names accepted by NewStrategy, matching the queue Descriptor.RetryStrategy
// field.
const (
	NameFixed       = "fixed"
	NameExponential = "exponential"
)

// Default tuning, shared by every queue unless config.ApplyRetryDefaults
// overrides it at startup from DISQUEUE_FIXED_DELAY/DISQUEUE_EXP_BASE/
// DISQUEUE_EXP_FACTOR.
var (
	DefaultFixedDelay = 5 * time.Second
	DefaultExpBase    = 1 * time.Second
	DefaultExpFactor  = 2.0
)

// NewStrategy builds the named strategy with the given retry limit.
func NewStrategy(name string, maxRetries int) (Strategy, error) {
	switch name {
	case NameFixed, "":
		return FixedStrategy{MaxRetries: maxRetries, Delay_: DefaultFixedDelay}, nil
	case NameExponential:
		return ExponentialStrategy{MaxRetries: maxRetries, BaseDelay: DefaultExpBase, Factor: DefaultExpFactor}, nil
	default:
		return nil, fmt.Errorf("unknown retry strategy %q", name)
	}
}
