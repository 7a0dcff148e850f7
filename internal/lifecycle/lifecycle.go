// Package lifecycle decides which user actions a bot accepts in each status.
// It never assigns the next status: the trading service reports that after the action settles.
package lifecycle

import (
	"errors"
	"fmt"
)

// Status is a bot's server-reported state
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
	StatusError   Status = "error"
)

// Action is a user-triggered lifecycle request
type Action string

const (
	ActionStart  Action = "start"
	ActionStop   Action = "stop"
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnknownAction     = errors.New("unknown action")
)

// transitions lists legal actions per status in control order
var transitions = map[Status][]Action{
	StatusStopped: {ActionStart},
	StatusRunning: {ActionPause, ActionStop},
	StatusPaused:  {ActionResume, ActionStop},
	StatusError:   {ActionStart},
}

// LegalActions returns the actions allowed for status. Unknown statuses allow nothing.
func LegalActions(status Status) []Action {
	actions := transitions[status]
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// IsLegal reports whether action may be requested for a bot in status
func IsLegal(status Status, action Action) bool {
	for _, a := range transitions[status] {
		if a == action {
			return true
		}
	}
	return false
}

// Validate returns ErrInvalidTransition when action is not legal for status
func Validate(status Status, action Action) error {
	if !IsLegal(status, action) {
		return fmt.Errorf("%w: cannot %s a bot that is %s", ErrInvalidTransition, action, status)
	}
	return nil
}

// ParseAction converts user input into an Action
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionStart, ActionStop, ActionPause, ActionResume:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// ParseStatus converts a server-reported status. Unknown values are rejected.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, s)
	}
	return st, nil
}

// Valid reports whether s is one of the four known statuses
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// ActionLabel is the control caption for action. Starting a failed bot reads as a restart.
func ActionLabel(status Status, action Action) string {
	switch action {
	case ActionStart:
		if status == StatusError {
			return "Restart"
		}
		return "Start"
	case ActionStop:
		return "Stop"
	case ActionPause:
		return "Pause"
	case ActionResume:
		return "Resume"
	}
	return string(action)
}

// PastTense is used in success messages ("Bot started successfully")
func (a Action) PastTense() string {
	switch a {
	case ActionStart:
		return "started"
	case ActionStop:
		return "stopped"
	case ActionPause:
		return "paused"
	case ActionResume:
		return "resumed"
	}
	return string(a) + "ed"
}
