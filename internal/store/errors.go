package store

import "errors"

// ErrNotFound is returned by every store when the requested row does not
// exist or a guarded update matched nothing.
var ErrNotFound = errors.New("not found")
