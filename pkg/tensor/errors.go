package tensor

import "errors"

// ErrDimensionMismatch is returned (wrapped with context) whenever a
// data-dependent shape check fails — for instance when a Model resizes
// against a task whose declared dimensions disagree with a layer's
// configured input. Shape problems that stem from how the caller wrote
// the code, such as indexing a Tensor out of bounds, panic instead; see
// the package doc comment.
var ErrDimensionMismatch = errors.New("tensor: dimension mismatch")
