package probe

import (
	"context"
	"time"
)

// Existence is one row of a registration lookup. The remote side may return
// multiple rows for aliased identifiers; any row with Exists settles the
// account as registered.
type Existence struct {
	AccountID string
	Exists    bool
}

// StatusInfo is the payload of a status probe. SetAt, when present, drives
// account age classification.
type StatusInfo struct {
	Text  string
	SetAt *time.Time
}

// Client is the remote messaging connection boundary. Every operation takes
// the normalized account identifier and is expected to complete or fail
// within the caller-supplied context deadline. Implementations that cannot
// cancel the underlying transport call may keep running past the deadline;
// the orchestrator discards the late result.
//
// Optional payloads are nil when the remote side has nothing for the account.
type Client interface {
	CheckExistence(ctx context.Context, accountID string) ([]Existence, error)
	FetchStatus(ctx context.Context, accountID string) (*StatusInfo, error)
	FetchProfilePicture(ctx context.Context, accountID, size string) ([]byte, error)
	FetchBusinessProfile(ctx context.Context, accountID string) (map[string]any, error)
	SubscribePresence(ctx context.Context, accountID string) (map[string]any, error)
}
