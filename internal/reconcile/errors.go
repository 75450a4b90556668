package reconcile

import "fmt"

// StoreError is a read, write or create failure against the entry source or
// the timeline store. It aborts the cycle.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("reconcile: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op, path string, err error) error {
	return &StoreError{Op: op, Path: path, Err: err}
}
