package loqui

import (
	"errors"
	"fmt"
)

// Code classifies failures at the component boundary. Every failure in this
// SDK is recovered locally; callers inspect the code to decide what to show.
type Code string

const (
	CodeInvalidConversation Code = "invalid_conversation"
	CodeSendFailed          Code = "send_failed"
	CodeSendInFlight        Code = "send_in_flight"
	CodeCacheFailed         Code = "cache_failed"
	CodeReceiptFailed       Code = "receipt_failed"
	CodeSubscriptionFailed  Code = "subscription_failed"
)

// AppError is a coded error. For send failures, Content carries the composed
// text so the UI can restore the input field for edit and retry.
type AppError struct {
	Code    Code
	Message string
	Content string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// CodeOf returns the code of err, or "" if err carries none.
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

func errInvalidConversation(msg string) error {
	return &AppError{Code: CodeInvalidConversation, Message: msg}
}

func errSend(content, msg string, cause error) error {
	return &AppError{Code: CodeSendFailed, Message: msg, Content: content, Cause: cause}
}

func errSendInFlight() error {
	return &AppError{Code: CodeSendInFlight, Message: "a send is already in flight"}
}

func errCache(msg string, cause error) error {
	return &AppError{Code: CodeCacheFailed, Message: msg, Cause: cause}
}

func errReceipt(cause error) error {
	return &AppError{Code: CodeReceiptFailed, Message: "updating read receipts", Cause: cause}
}

func errSubscription(msg string, cause error) error {
	return &AppError{Code: CodeSubscriptionFailed, Message: msg, Cause: cause}
}
