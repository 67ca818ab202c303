package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// expirySkew refreshes tokens slightly before they expire.
const expirySkew = 5 * time.Minute

// RefreshFunc obtains a new token and its expiry.
type RefreshFunc func(ctx context.Context) (token string, expiry time.Time, err error)

// TokenSource caches an ID token. Concurrent refreshes share one call.
type TokenSource struct {
	refresh RefreshFunc
	now     func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time

	group singleflight.Group
}

// NewTokenSource wraps refresh.
func NewTokenSource(refresh RefreshFunc) *TokenSource {
	return &TokenSource{refresh: refresh, now: time.Now}
}

// Seed installs a token obtained elsewhere, e.g. at sign-in.
func (ts *TokenSource) Seed(token string, expiry time.Time) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.token, ts.expiry = token, expiry
}

// Reset drops the cached token.
func (ts *TokenSource) Reset() {
	ts.Seed("", time.Time{})
}

// Token returns the cached token unless force is set or it is about to expire.
func (ts *TokenSource) Token(ctx context.Context, force bool) (string, error) {
	if !force {
		ts.mu.Lock()
		token, expiry := ts.token, ts.expiry
		ts.mu.Unlock()
		if token != "" && ts.now().Add(expirySkew).Before(expiry) {
			return token, nil
		}
	}

	// the refresh is shared, so one caller cancelling must not fail the others
	shared := context.WithoutCancel(ctx)
	v, err, _ := ts.group.Do("refresh", func() (any, error) {
		token, expiry, err := ts.refresh(shared)
		if err != nil {
			return "", err
		}
		ts.Seed(token, expiry)
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
