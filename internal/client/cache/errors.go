package cache

import "fmt"

// PersistenceError reports a local store failure during a cache operation.
// A mutating call that returns it has not been applied.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
