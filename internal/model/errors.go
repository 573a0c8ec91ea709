package model

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes failures surfaced to callers.
type ErrorKind string

const (
	// KindInvalidOperation rejects a request; no state was mutated.
	KindInvalidOperation ErrorKind = "INVALID_OPERATION"

	// KindInternal reports an internal-consistency violation. The current call
	// is aborted and nothing is repaired.
	KindInternal ErrorKind = "INTERNAL"

	// KindNotSupported rejects an operation this store does not implement.
	KindNotSupported ErrorKind = "NOT_SUPPORTED"
)

// Error codes.
const (
	CodeDiscardUnpublishedVersion     = "DISCARD_CHANGES_OF_UNPUBLISHED_VERSION"
	CodePrivateRevisionNotOnPublic    = "PRIVATE_VERSION_REVISION_WAS_NOT_FOUND_ON_PUBLIC"
	CodePublicSyncStateWithoutElement = "PUBLIC_SYNC_STATE_EXISTS_WITHOUT_ELEMENT"
	CodePrivateUnpublishedWithoutElem = "PRIVATE_UNPUBLISHED_SYNC_STATE_EXISTS_WITHOUT_ELEMENT"
	CodeSyncStateMissing              = "SYNC_STATE_MISSING"
	CodeSubElementMissing             = "SUB_ELEMENT_NOT_EXIST"
	CodeElementToUpdateMissing        = "ELEMENT_TO_UPDATE_DOES_NOT_EXIST"
	CodeStagedElementMissing          = "STAGED_ELEMENT_MISSING"
	CodeRevertElementMissing          = "REVERT_SOURCE_ELEMENT_MISSING"
	CodeVersionMissing                = "VERSION_MISSING"
	CodeVersionDataMissing            = "VERSION_DATA_MISSING"
	CodeRevisionNotFound              = "REVISION_NOT_FOUND"
	CodePublishNonexistentVersion     = "PUBLISH_NONEXISTENT_VERSION"
	CodePublishOutOfSyncVersion       = "PUBLISH_OUT_OF_SYNC_VERSION"
	CodeBaseVersionMissing            = "BASE_VERSION_MISSING"
	CodeElementMissing                = "ELEMENT_NOT_FOUND"
	CodeInvalidArgument               = "INVALID_ARGUMENT"
	CodeNotSupported                  = "NOT_SUPPORTED"
)

// Error is the structured failure returned by stores, services and the engine.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// InvalidOperation creates a rejected-request error.
func InvalidOperation(code, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidOperation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Internal creates an internal-consistency error.
func Internal(code, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotSupported creates an error for an unimplemented operation.
func NotSupported(operation string) *Error {
	return &Error{Kind: KindNotSupported, Code: CodeNotSupported, Message: operation + " is not supported"}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the code of err, or "" when err is not an *Error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsInvalidOperation reports whether err is a rejected-request error.
func IsInvalidOperation(err error) bool { return KindOf(err) == KindInvalidOperation }

// IsInternal reports whether err is an internal-consistency error.
func IsInternal(err error) bool { return KindOf(err) == KindInternal }

// IsNotSupported reports whether err rejects an unsupported operation.
func IsNotSupported(err error) bool { return KindOf(err) == KindNotSupported }
