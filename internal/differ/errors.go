package differ

import "errors"

// ErrDependencyCycle indicates the computed operations cannot be ordered.
var ErrDependencyCycle = errors.New("operation dependency cycle")
