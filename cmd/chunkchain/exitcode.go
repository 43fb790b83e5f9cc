package main

import (
	"errors"

	"github.com/kk-code-lab/chunkchain/internal/chain"
	"github.com/kk-code-lab/chunkchain/internal/storage/chunk"
)

const (
	exitFailure    = 1
	exitUsage      = 2
	exitCorruption = 3
)

type exitCodeError struct {
	code  int
	msg   string
	quiet bool
}

func (e *exitCodeError) Error() string {
	return e.msg
}

func (e *exitCodeError) ExitCode() int {
	return e.code
}

func (e *exitCodeError) Quiet() bool {
	return e.quiet
}

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ece *exitCodeError
	if errors.As(err, &ece) {
		return ece.ExitCode()
	}
	switch {
	case errors.Is(err, chain.ErrDataCorruption):
		return exitCorruption
	case errors.Is(err, chunk.ErrInvalidArgument), errors.Is(err, ErrFileRequired), errors.Is(err, ErrValueRequired):
		return exitUsage
	}
	return exitFailure
}
