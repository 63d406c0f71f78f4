// Package failure maps extraction and storage failures onto the outcomes the
// orchestrator acts on: skip the item, recycle the browser session, or log and continue.
package failure

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
)

// Kind is the classified outcome of a failed item.
type Kind int

const (
	KindTransientItem Kind = iota
	KindFatalSession
	KindValidation
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindTransientItem:
		return "transient_item"
	case KindFatalSession:
		return "fatal_session"
	case KindValidation:
		return "validation"
	case KindPersistence:
		return "persistence"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrNavigationTimeout is wrapped by page implementations when a navigation
// does not complete within its deadline.
var ErrNavigationTimeout = errors.New("navigation timeout")

// ErrSessionUnavailable is wrapped when no browser session could be started.
var ErrSessionUnavailable = errors.New("browser session unavailable")

// ValidationError reports a bundle that is structurally incomplete after extraction.
type ValidationError struct {
	ItemID string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s %s", e.ItemID, e.Field, e.Reason)
}

// PersistenceError reports a failed storage write for one item.
type PersistenceError struct {
	ItemID string
	Op     string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s (%s): %v", e.ItemID, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Signal is a failure reduced to its kind name and message, e.g. as read back
// from a log or produced by a backend that does not return typed errors.
type Signal struct {
	Kind    string
	Message string
}

// fatalSignatures are backend protocol failures meaning the browser itself is unhealthy.
var fatalSignatures = []string{
	"navigation timeout",
	"target.closetarget",
	"target.createtarget",
	"protocol error",
	"target closed",
	"session closed",
	"websocket",
	"channel closed",
	"invalid context",
	"invalid target",
}

var fatalSentinels = []error{
	ErrNavigationTimeout,
	ErrSessionUnavailable,
	chromedp.ErrInvalidContext,
	chromedp.ErrInvalidTarget,
	chromedp.ErrChannelClosed,
	chromedp.ErrInvalidWebsocketMessage,
}

// Classify maps an error raised after item-level retries to its Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindTransientItem
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		return KindValidation
	}
	var perr *PersistenceError
	if errors.As(err, &perr) {
		return KindPersistence
	}
	for _, sentinel := range fatalSentinels {
		if errors.Is(err, sentinel) {
			return KindFatalSession
		}
	}

	return ClassifySignal(Signal{Message: err.Error()})
}

// ClassifySignal classifies a failure from its kind name and message alone.
func ClassifySignal(s Signal) Kind {
	switch strings.ToLower(strings.TrimSpace(s.Kind)) {
	case KindValidation.String():
		return KindValidation
	case KindPersistence.String():
		return KindPersistence
	case KindFatalSession.String():
		return KindFatalSession
	}

	msg := strings.ToLower(s.Message)
	for _, sig := range fatalSignatures {
		if strings.Contains(msg, sig) {
			return KindFatalSession
		}
	}
	return KindTransientItem
}

// IsShutdown reports whether err is the caller's own cancellation rather than an item failure.
func IsShutdown(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
