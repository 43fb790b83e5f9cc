package main

import "errors"

var (
	ErrFileRequired  = errors.New("file argument required")
	ErrValueRequired = errors.New("at least one chunk value or --index required")
	ErrUnknownShell  = errors.New("unknown shell command")
)
