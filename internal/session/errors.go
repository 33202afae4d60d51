package session

import (
	"errors"
)

var (
	ErrNoToken      = errors.New("no token provided")
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid also covers refresh tokens with no active session.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrReuseDetected is returned after every session of the subject has been revoked.
	ErrReuseDetected  = errors.New("refresh token reuse detected")
	ErrUnknownSubject = errors.New("unknown subject")
	ErrRateLimited    = errors.New("too many refresh attempts")
)

// ErrorKind is the closed set of outcomes of a session operation.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindNoToken
	KindExpired
	KindInvalid
	KindReuse
	KindUnknownSubject
	KindRateLimited
	KindInternal
)

var kindNames = map[ErrorKind]string{
	KindNone:           "ok",
	KindNoToken:        "no_token",
	KindExpired:        "expired",
	KindInvalid:        "invalid",
	KindReuse:          "reuse",
	KindUnknownSubject: "unknown_subject",
	KindRateLimited:    "rate_limited",
	KindInternal:       "internal",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "internal"
}

// KindOf classifies err. Anything that is not one of the package's sentinel
// errors, including store failures and duplicate tokens, is KindInternal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNoToken):
		return KindNoToken
	case errors.Is(err, ErrTokenExpired):
		return KindExpired
	case errors.Is(err, ErrTokenInvalid):
		return KindInvalid
	case errors.Is(err, ErrReuseDetected):
		return KindReuse
	case errors.Is(err, ErrUnknownSubject):
		return KindUnknownSubject
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	default:
		return KindInternal
	}
}
