package ir

import "errors"

// ErrPrecondition reports that a caller broke a documented precondition of a
// block or function operation. The operation made no change.
var ErrPrecondition = errors.New("ir: precondition violated")
