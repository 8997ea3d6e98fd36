package lease

import "errors"

// ErrInvalidTimeout is returned for a zero or negative lease timeout, which would create a lease that never expires
var ErrInvalidTimeout = errors.New("lease timeout must be positive")
