package session

import (
	"errors"
	"fmt"
)

// Package errors.
var (
	// ErrUnsupportedDescriptionType is returned when a description is neither
	// an offer nor an answer.
	ErrUnsupportedDescriptionType = errors.New("session: unsupported description type")

	// ErrNegotiationFailed matches every *NegotiationError.
	ErrNegotiationFailed = errors.New("session: negotiation failed")

	// ErrCandidateRejected is returned when the connection refuses a remote candidate.
	ErrCandidateRejected = errors.New("session: candidate rejected")

	// ErrSessionClosed is returned by commands issued after Close.
	ErrSessionClosed = errors.New("session: closed")
)

// NegotiationError reports which connection step of an offer/answer cycle failed.
type NegotiationError struct {
	Op  string
	Err error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("session: %s: %v", e.Op, e.Err)
}

func (e *NegotiationError) Unwrap() error { return e.Err }

func (e *NegotiationError) Is(target error) bool { return target == ErrNegotiationFailed }
