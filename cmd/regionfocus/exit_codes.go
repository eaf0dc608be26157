package main

import (
	stderrors "errors"

	"github.com/odvcencio/regionfocus/pkg/errors"
)

const (
	exitFailure = 1
	exitUsage   = 2
	exitInput   = 3
)

type exitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e exitError) Unwrap() error {
	return e.err
}

func (e exitError) ExitCode() int {
	if e.code == 0 {
		return exitFailure
	}
	return e.code
}

func withExitCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return exitError{code: code, err: err}
}

// exitCodeForError maps unreadable input and bad configuration to
// exitInput; every other failure, including a failed step, is exitFailure.
func exitCodeForError(err error) int {
	if err == nil {
		return 0
	}
	var coded exitCoder
	if stderrors.As(err, &coded) {
		return coded.ExitCode()
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeScenarioParse, errors.ErrCodeConfigLoad, errors.ErrCodeConfigParse, errors.ErrCodeConfigInvalid:
		return exitInput
	}
	return exitFailure
}
