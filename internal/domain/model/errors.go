package model

import "errors"

// Error taxonomy. Every one of these is recovered locally and turned into a
// printed remediation hint; none of them should crash a command.
var (
	ErrMissingFile         = errors.New("file not found")
	ErrSyntax              = errors.New("syntax error")
	ErrMissingPattern      = errors.New("missing pattern")
	ErrHardwareUnavailable = errors.New("hardware unavailable")
	ErrLibraryUnavailable  = errors.New("library unavailable")
)
