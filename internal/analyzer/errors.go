package analyzer

import "errors"

// ErrUnknownSeverity is returned by ParseSeverity for an unrecognized label.
var ErrUnknownSeverity = errors.New("unknown severity")
