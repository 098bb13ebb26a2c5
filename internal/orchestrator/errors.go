package orchestrator

import "fmt"

// Kind is the stable failure discriminant orchestrator operations report.
// The transport layer maps kinds to HTTP statuses; callers never see raw
// store or command errors.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindSystemCreateFailed  Kind = "system_create_failed"
	KindSystemUpdateFailed  Kind = "system_update_failed"
	KindSystemDeleteFailed  Kind = "system_delete_failed"
	KindRecordInsertFailed  Kind = "record_insert_failed"
	KindRecordUpdateFailed  Kind = "record_update_failed"
	KindRecordDeleteFailed  Kind = "record_delete_failed"
	KindDuplicateIdentifier Kind = "duplicate_identifier"
	KindNotFound            Kind = "not_found"
	KindAlreadyInitialized  Kind = "already_initialized"
)

// OpError is the discriminated failure result of an orchestrator operation.
// Message is safe to show to callers: it never carries secrets or raw
// command output.
type OpError struct {
	Kind    Kind
	Message string
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func opErr(kind Kind, message string) *OpError {
	return &OpError{Kind: kind, Message: message}
}
