package session

import "context"

// Store persists the active session, the bounded history log (newest first),
// and the last-operator convenience record.
type Store interface {
	SaveActive(ctx context.Context, s Session) error
	// LoadActive returns sentinel.ErrNotFound when no session is active.
	LoadActive(ctx context.Context) (Session, error)
	ClearActive(ctx context.Context) error

	// AppendHistory prepends the terminal session and trims to limit.
	AppendHistory(ctx context.Context, s Session, limit int) error
	History(ctx context.Context) ([]Session, error)

	SaveLastOperator(ctx context.Context, op Operator) error
	// LastOperator returns sentinel.ErrNotFound when none was recorded.
	LastOperator(ctx context.Context) (Operator, error)
}
