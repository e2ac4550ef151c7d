package database

import "fmt"

// ErrStoreUnavailable is returned when the relational store cannot be reached.
type ErrStoreUnavailable struct {
	Msg string
	Err error
}

func (e *ErrStoreUnavailable) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("store unavailable: %s", e.Msg)
	}
	return fmt.Sprintf("store unavailable: %s: %v", e.Msg, e.Err)
}

func (e *ErrStoreUnavailable) Unwrap() error {
	return e.Err
}
