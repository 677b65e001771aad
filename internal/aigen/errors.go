package aigen

import (
	"errors"
	"fmt"
)

// Kind is the error taxonomy of spec §4.2/§7.
type Kind string

const (
	KindTransport Kind = "transport" // retryable
	KindRemote    Kind = "remote"    // retryable unless 4xx non-429
	KindParse     Kind = "parse"     // retryable once, else fallback
	KindConfig    Kind = "config"    // fatal
)

// Error carries a Kind alongside the usual wrapped cause, letting the
// scheduler (C5) classify retry eligibility without string matching.
type Error struct {
	Kind       Kind
	Task       string
	StatusCode int // set for KindRemote
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Kind, e.Task, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Task, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func transportErr(task string, err error) error {
	return &Error{Kind: KindTransport, Task: task, Err: err}
}

func remoteErr(task string, status int, err error) error {
	return &Error{Kind: KindRemote, Task: task, StatusCode: status, Err: err}
}

func parseErr(task string, err error) error {
	return &Error{Kind: KindParse, Task: task, Err: err}
}

func configErr(task string, err error) error {
	return &Error{Kind: KindConfig, Task: task, Err: err}
}

// Retryable reports whether the scheduler should attempt a retry for this
// error, per the taxonomy in spec §7: TransportError always retryable,
// RemoteError retryable unless it's a 4xx other than 429, ParseError
// retryable once (the scheduler tracks the "once" via retry_count),
// ConfigError never retryable.
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindTransport:
		return true
	case KindRemote:
		if e.StatusCode == 429 {
			return true
		}
		return e.StatusCode < 400 || e.StatusCode >= 500
	case KindParse:
		return true
	case KindConfig:
		return false
	}
	return false
}
