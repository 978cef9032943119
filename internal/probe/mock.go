package probe

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MockClient is a deterministic remote connection used by tests and by the
// server until a real transport is wired. Behavior is scripted off the last
// digit of the account identifier, with a configurable latency to mimic
// real-world calls:
//
//	0: not registered
//	8: every probe rejected with spam/rate-limit errors
//	9: every probe rejected with a permanent-termination error
//	2: registered, recently created account
//	otherwise: registered, status and picture present
type MockClient struct {
	Latency time.Duration
}

func (c MockClient) lastDigit(accountID string) byte {
	digits, _, _ := strings.Cut(accountID, "@")
	if digits == "" {
		return 0
	}
	return digits[len(digits)-1]
}

func (c MockClient) wait(ctx context.Context) error {
	if c.Latency <= 0 {
		return nil
	}
	timer := time.NewTimer(c.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c MockClient) CheckExistence(ctx context.Context, accountID string) ([]Existence, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	if c.lastDigit(accountID) == '0' {
		return []Existence{{AccountID: accountID, Exists: false}}, nil
	}
	return []Existence{{AccountID: accountID, Exists: true}}, nil
}

func (c MockClient) FetchStatus(ctx context.Context, accountID string) (*StatusInfo, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	switch c.lastDigit(accountID) {
	case '8':
		return nil, errors.New("429 too many requests, rate limit exceeded")
	case '9':
		return nil, errors.New("account permanently terminated")
	case '2':
		setAt := time.Now().Add(-7 * 24 * time.Hour)
		return &StatusInfo{Text: "Hey there!", SetAt: &setAt}, nil
	default:
		setAt := time.Now().Add(-365 * 24 * time.Hour)
		return &StatusInfo{Text: "Available", SetAt: &setAt}, nil
	}
}

func (c MockClient) FetchProfilePicture(ctx context.Context, accountID, _ string) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	switch c.lastDigit(accountID) {
	case '8':
		return nil, errors.New("429 spam detection triggered")
	case '9':
		return nil, errors.New("404 account deleted")
	default:
		return []byte{0xff, 0xd8, 0xff}, nil
	}
}

func (c MockClient) FetchBusinessProfile(ctx context.Context, accountID string) (map[string]any, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	switch c.lastDigit(accountID) {
	case '8':
		return nil, errors.New("429 too many requests")
	case '9':
		return nil, errors.New("404 not found")
	case '7':
		return map[string]any{"category": "retail", "verified": true}, nil
	default:
		return nil, nil
	}
}

func (c MockClient) SubscribePresence(ctx context.Context, accountID string) (map[string]any, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	switch c.lastDigit(accountID) {
	case '8', '9':
		return nil, errors.New("subscription refused")
	default:
		return map[string]any{"subscribed": true}, nil
	}
}
