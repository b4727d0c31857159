package server

import "errors"

var (
	ErrServerClosed     = errors.New("server is closed")
	ErrServerNotRunning = errors.New("server is not running")
	ErrServerRunning    = errors.New("server is already running")
	ErrInvalidMessage   = errors.New("invalid message")
	ErrSlowClient       = errors.New("client is not keeping up")
)
