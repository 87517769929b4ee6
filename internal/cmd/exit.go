package cmd

import (
	"errors"
	"os"

	cerrors "github.com/comp-lang/comp/internal/errors"
)

// Exit codes.
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitValidationError = 2
	ExitEvalFailure     = 3
	ExitNotFound        = 5
)

// ExitCodeFromError maps an error to the appropriate exit code.
func ExitCodeFromError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, cerrors.ErrValidation):
		return ExitValidationError
	case errors.Is(err, cerrors.ErrNotFound):
		return ExitNotFound
	}

	return ExitGeneralError
}

// Exit terminates the program with the appropriate exit code for the error.
func Exit(err error) {
	os.Exit(ExitCodeFromError(err))
}
