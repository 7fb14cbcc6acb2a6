package history

import "errors"

// ErrInvalidConfiguration indicates a history table name or schema the
// dialect cannot use.
var ErrInvalidConfiguration = errors.New("invalid history repository configuration")

// ErrConditionalBlocksUnsupported indicates the dialect has no conditional
// script blocks, so migrations cannot be guarded individually.
var ErrConditionalBlocksUnsupported = errors.New("conditional script blocks are not supported")
