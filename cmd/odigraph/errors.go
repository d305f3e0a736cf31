package main

import "strconv"

// exitError carries a process exit code out of a RunE handler.
type exitError struct {
	Code int
	Err  error
}

func (e *exitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "exit status " + strconv.Itoa(e.Code)
}

func (e *exitError) Unwrap() error { return e.Err }

// Exit codes.
const (
	exitResolution = 1 // the manifest loaded but did not resolve
	exitInput      = 2 // the manifest or configuration could not be read
)
