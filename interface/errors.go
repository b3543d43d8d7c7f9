package iface

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindNone Kind = iota
	KindConfig
	KindAuth
	KindCapture
	KindLocalization
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindAuth:
		return "auth"
	case KindCapture:
		return "capture"
	case KindLocalization:
		return "localization"
	}
	return ""
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for _, c := range []Kind{KindConfig, KindAuth, KindCapture, KindLocalization} {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	*k = KindNone
	return nil
}

var (
	// ErrBusy is returned when a localization is requested while another is in flight.
	ErrBusy = errors.New("localization already in progress")
	// ErrNotAuthenticated is returned when no token has been obtained yet.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Error tags an underlying failure with its taxonomy kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindNone.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}
