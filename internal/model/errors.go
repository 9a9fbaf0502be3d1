package model

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrorKind classifies domain errors so the transport layer can pick a status.
// The zero value means "not a domain error" and is treated as an internal fault.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
)

// Error is a domain error. Sentinels are compared by identity with errors.Is.
type Error struct {
	Kind    ErrorKind
	Code    string // optional API code, overrides the default code for Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf returns the kind of the first domain error in err's chain.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

// AsError returns the first domain error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var de *Error
	ok := errors.As(err, &de)
	return de, ok
}

var (
	ErrInvalidID     = newError(KindValidation, "Invalid id")
	ErrInvalidCursor = newError(KindValidation, "Invalid cursor")
	ErrInvalidBody   = newError(KindValidation, "Invalid request body")
)

// ParseObjectID parses a hex id coming from a URL or token.
func ParseObjectID(s string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return id, nil
}
