package command

import "errors"

var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrDuplicateCommand = errors.New("command already registered")
	ErrMissingArgument  = errors.New("missing argument")
)
