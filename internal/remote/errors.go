package remote

import "fmt"

// RemoteError wraps a backend failure with the operation and table that
// produced it. Callers treat these as non-fatal and retryable: a rejected
// push or pull is logged and the next sync cycle tries again.
type RemoteError struct {
	Op    string
	Table string
	Err   error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func wrap(op, table string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteError{Op: op, Table: table, Err: err}
}
