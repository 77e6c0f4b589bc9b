package sessionkit

import (
	"errors"

	"github.com/morganforge/sessionkit/store"
	"github.com/morganforge/sessionkit/token"
)

var (
	// ErrSessionNotFound reports a token unknown to the store. Callers
	// generally map it to an invalid-token response.
	ErrSessionNotFound = store.ErrNotFound
	// ErrSessionExpired reports a token known but past its timeout. Callers
	// generally trigger re-authentication.
	ErrSessionExpired = store.ErrExpired
	// ErrStorePoisoned reports an internal lock left unusable by a prior
	// abnormal failure. Every operation keeps returning it until an operator
	// calls [Manager.ResetStore]; the process itself keeps running.
	ErrStorePoisoned = store.ErrPoisoned
	// ErrInvalidFormat reports a supplied token that does not match the
	// expected shape. It is produced by [token.Parse], never by the store.
	ErrInvalidFormat = token.ErrInvalidFormat

	// ErrManagerNotReady is returned when a Manager is used before
	// [Builder.Build] completed.
	ErrManagerNotReady = errors.New("session manager not initialized")
	// ErrRecordInvalid is returned by [Manager.Store] for records that
	// violate basic shape invariants (empty ID, activity before creation).
	ErrRecordInvalid = errors.New("invalid session record")
)
