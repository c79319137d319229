package cli

import "errors"

// exitError reports a non-zero exit without printing a generic error line.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return "exit status"
}

func asExit(err error, target *exitError) bool {
	return errors.As(err, target)
}
