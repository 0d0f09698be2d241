// Package models defines the core data structures for DialogKit.
//
// It includes the parsed input record consumed by control trees, the persisted
// session snapshot envelope, turn request/response shapes for hosts, and the
// sentinel errors shared across modules.
package models

import (
	"encoding/json"
	"errors"
	"time"
)

// Error variables for better error handling and testability
var (
	// ErrEmptyControlID indicates a control was constructed or referenced without an id.
	ErrEmptyControlID = errors.New("control id cannot be empty")
	// ErrDuplicateControlID indicates two controls in the same tree share an id.
	ErrDuplicateControlID = errors.New("duplicate control id")
	// ErrUnknownChildKind indicates a dynamic child specification names a kind the factory cannot build.
	ErrUnknownChildKind = errors.New("unknown dynamic child kind")
	// ErrDuplicateTargetLabel indicates two simultaneously eligible controls render the same specific target label.
	ErrDuplicateTargetLabel = errors.New("duplicate specific target label among eligible controls")
	// ErrHandleWithoutCanHandle indicates Handle was invoked without a prior successful CanHandle.
	ErrHandleWithoutCanHandle = errors.New("handle called without a matching canHandle")
	// ErrInitiativeWithoutCanTakeInitiative indicates TakeInitiative was invoked without a prior successful CanTakeInitiative.
	ErrInitiativeWithoutCanTakeInitiative = errors.New("takeInitiative called without a matching canTakeInitiative")
	// ErrMultipleInitiativeActs indicates a single turn produced more than one initiative act.
	ErrMultipleInitiativeActs = errors.New("turn produced more than one initiative act")
	// ErrUnknownActKind indicates the renderer encountered a system act kind it has no branch for.
	ErrUnknownActKind = errors.New("unknown system act kind")
	// ErrUnknownResolutionStrategy indicates a container was configured with an unrecognized strategy.
	ErrUnknownResolutionStrategy = errors.New("unknown resolution strategy")
	// ErrInvalidInput indicates the incoming control input failed validation.
	ErrInvalidInput = errors.New("invalid control input")
)

// ValidationFailure describes why a proposed value was rejected by a validator.
type ValidationFailure struct {
	Reason  string `json:"reason"`  // stable machine-readable reason code
	Message string `json:"message"` // user-facing explanation
}

// SessionSnapshot is the persisted record of a conversation between turns.
// ControlStates maps control id to that control's serialized state.
type SessionSnapshot struct {
	TurnNumber    int                        `json:"turn_number"`
	ControlStates map[string]json.RawMessage `json:"control_states"`
	UpdatedAt     time.Time                  `json:"updated_at"`
}

// TurnRequest is the host-facing request body for processing one turn.
// SessionID may be empty, in which case the host mints a new session.
type TurnRequest struct {
	SessionID string       `json:"session_id,omitempty"`
	Input     ControlInput `json:"input"`
}

// TurnResponse is the rendered outcome of one processed turn.
type TurnResponse struct {
	SessionID    string   `json:"session_id"`
	TurnNumber   int      `json:"turn_number"`
	Prompt       string   `json:"prompt"`
	Reprompt     string   `json:"reprompt,omitempty"`
	Directives   []string `json:"directives,omitempty"`
	SessionEnded bool     `json:"session_ended"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
