// Package store persists the client's session and usage state across
// restarts. Token, user record, and anonymous usage counter are each
// independently readable and writable; ClearSession removes the credential
// pair but never touches the counter.
package store

import "truthguard/pkg/domain"

// StateStore is the durable key/value persistence behind the session
// manager and the usage gate. It holds no business logic.
type StateStore interface {
	SaveToken(token string) error
	Token() (string, bool, error)

	SaveUser(user domain.User) error
	User() (domain.User, bool, error)

	// ClearSession removes token and user together, never the usage
	// counter.
	ClearSession() error

	UsageCount() (int, error)
	SaveUsageCount(n int) error

	Close() error
}
