package model

// ResultKind is the terminal outcome of one orchestrated interaction.
type ResultKind string

const (
	ResultClarify   ResultKind = "clarify"
	ResultStaged    ResultKind = "staged"
	ResultApplied   ResultKind = "applied"
	ResultCancelled ResultKind = "cancelled"
	ResultRejected  ResultKind = "rejected"
)

// ErrorKind is a stable tag the transport layer localizes into user wording.
type ErrorKind string

const (
	ErrorNotFound       ErrorKind = "not_found"
	ErrorExpired        ErrorKind = "expired"
	ErrorForbidden      ErrorKind = "forbidden"
	ErrorInvalidInput   ErrorKind = "invalid_input"
	ErrorDuplicateName  ErrorKind = "duplicate_name"
	ErrorMutationFailed ErrorKind = "mutation_failed"
)

// Result is what the orchestrator hands back to the transport layer.
// Exactly the fields for its Kind are populated.
type Result struct {
	Kind ResultKind `json:"kind"`

	// Clarify
	PromptKey string   `json:"promptKey,omitempty"`
	Options   []string `json:"options,omitempty"`

	// Staged
	CorrelationID string      `json:"correlationId,omitempty"`
	Proposed      *ActionData `json:"proposed,omitempty"`
	ActionType    ActionType  `json:"actionType,omitempty"`

	// Applied
	Applied *AppliedSummary `json:"applied,omitempty"`

	// Rejected
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
}

// AppliedSummary describes what an applied action changed.
type AppliedSummary struct {
	Account     *Account          `json:"account,omitempty"`
	Accounts    []*Account        `json:"accounts,omitempty"`
	Transaction *Transaction      `json:"transaction,omitempty"`
	NewBalance  *string           `json:"newBalance,omitempty"`
	SetDefault  *SetDefaultResult `json:"setDefault,omitempty"`
}
