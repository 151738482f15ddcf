package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/synaptica-ai/radiology-console/pkg/gateway/httpclient"
)

// Kind classifies why a remote call failed.
type Kind int

const (
	KindApplication Kind = iota // remote reachable, answered with an error or a malformed payload
	KindConnection              // remote unreachable
	KindNotFound                // requested identifier unknown to the remote
	KindValidation              // required local inputs missing; never surfaced to screens
	KindCanceled                // caller detached before the call resolved
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindCanceled:
		return "canceled"
	default:
		return "application"
	}
}

// Error is the classified failure returned by every remote operation.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s failure (status %d): %s", e.Op, e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s failure: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Connection(op string, err error) *Error {
	return &Error{Kind: KindConnection, Op: op, Err: err}
}

func Application(op string, status int, message string) *Error {
	return &Error{Kind: KindApplication, Op: op, StatusCode: status, Message: message}
}

func NotFound(op, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, StatusCode: 404, Message: message}
}

func Validation(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

// Classify turns an arbitrary error into a *Error. Already-classified errors
// are returned unchanged.
func Classify(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindCanceled, Op: op, Err: err}
	}
	if httpclient.IsConnectionError(err) {
		return Connection(op, err)
	}
	return &Error{Kind: KindApplication, Op: op, Err: err}
}

// KindOf returns the classification of err; unclassified errors count as
// application failures.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Classify("", err).Kind
}

func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

// Describe renders err as a short operator-facing sentence.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	fe := Classify("", err)
	switch fe.Kind {
	case KindConnection:
		return "Unable to connect to the analysis backend"
	case KindNotFound:
		if fe.Message != "" {
			return fe.Message
		}
		return "Requested record was not found"
	case KindCanceled:
		return "Request was canceled"
	}
	if fe.Message != "" {
		return fe.Message
	}
	if fe.Err != nil {
		return fe.Err.Error()
	}
	return "Request failed"
}
