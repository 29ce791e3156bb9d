package models

import "fmt"

// TargetNotFoundError means a guild, channel or job does not exist or is not
// reachable by the bot.
type TargetNotFoundError struct {
	Kind string
	ID   string
}

func (e *TargetNotFoundError) Error() string {
	switch e.Kind {
	case "guild":
		return fmt.Sprintf("guild %s not found or bot not a member", e.ID)
	case "channel":
		return fmt.Sprintf("channel %s not found or not readable", e.ID)
	default:
		return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
	}
}

// PermissionError means read access to a channel was refused mid-fetch.
type PermissionError struct {
	ChannelID int64
	Err       error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("missing permissions on channel %d: %v", e.ChannelID, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// ParseError means an after/before bound could not be interpreted.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s bound %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// GatewayError wraps a transport or connection failure talking to Discord.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// StoreError wraps a document store query or insert failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// AnalysisError wraps a failed LLM analysis call.
type AnalysisError struct {
	Model  string
	Prompt string
	Err    error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis with model %q and prompt %q failed: %v", e.Model, e.Prompt, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }
