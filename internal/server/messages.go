package server

import (
	"github.com/zeusync/tabletop/internal/core/command"
)

const (
	msgCommand = "command"

	kindOutcome = "outcome"
	kindError   = "error"
)

// clientMessage is what a client sends over the socket.
type clientMessage struct {
	Type string `json:"type"`
	// ID is echoed back in the reply so clients can match them up.
	ID      string          `json:"id,omitempty"`
	Command command.Command `json:"command"`
}

// reply answers one clientMessage. Notifications travel as events.Notification.
type reply struct {
	Kind    string           `json:"kind"`
	ID      string           `json:"id,omitempty"`
	Outcome *command.Outcome `json:"outcome,omitempty"`
	Error   string           `json:"error,omitempty"`
}
