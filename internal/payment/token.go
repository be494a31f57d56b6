package payment

import (
	"context"
	"sync"
	"time"
)

// tokenMargin is subtracted from the advertised lifetime so a token is never used at the edge of expiry
const tokenMargin = 60 * time.Second

// FetchTokenFunc obtains a fresh access token and its lifetime
type FetchTokenFunc func(ctx context.Context) (token string, ttl time.Duration, err error)

// TokenSource hands out gateway access tokens and refreshes them when they expire.
// It is safe for concurrent use; concurrent callers share one refresh.
type TokenSource struct {
	mu     sync.Mutex
	fetch  FetchTokenFunc
	now    func() time.Time
	token  string
	expiry time.Time
}

// NewTokenSource creates a token source around fetch
func NewTokenSource(fetch FetchTokenFunc) *TokenSource {
	return &TokenSource{fetch: fetch, now: time.Now}
}

// Token returns a valid access token, fetching a new one if needed
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && s.now().Before(s.expiry) {
		return s.token, nil
	}
	token, ttl, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	if ttl > 2*tokenMargin {
		ttl -= tokenMargin
	}
	s.token = token
	s.expiry = s.now().Add(ttl)
	return token, nil
}

// Invalidate forgets the cached token, e.g. after the gateway rejected it
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}
