package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_TokenSource(t *testing.T) {
	t.Run("ok, caches until the margin before expiry", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		calls := 0
		src := NewTokenSource(func(ctx context.Context) (string, time.Duration, error) {
			calls++
			return "tok", time.Hour, nil
		})
		src.now = func() time.Time { return now }

		tok, err := src.Token(t.Context())
		require.NoError(t, err)
		require.Equal(t, "tok", tok)

		now = now.Add(58 * time.Minute)
		_, err = src.Token(t.Context())
		require.NoError(t, err)
		require.Equal(t, 1, calls)

		now = now.Add(time.Minute)
		_, err = src.Token(t.Context())
		require.NoError(t, err)
		require.Equal(t, 2, calls)
	})

	t.Run("ok, invalidate forces a refresh", func(t *testing.T) {
		calls := 0
		src := NewTokenSource(func(ctx context.Context) (string, time.Duration, error) {
			calls++
			return "tok", time.Hour, nil
		})
		_, _ = src.Token(t.Context())
		src.Invalidate()
		_, _ = src.Token(t.Context())
		require.Equal(t, 2, calls)
	})

	t.Run("ok, concurrent callers share one fetch", func(t *testing.T) {
		var mu sync.Mutex
		calls := 0
		src := NewTokenSource(func(ctx context.Context) (string, time.Duration, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			return "tok", time.Hour, nil
		})
		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = src.Token(t.Context())
			}()
		}
		wg.Wait()
		require.Equal(t, 1, calls)
	})

	t.Run("fail, fetch error is not cached", func(t *testing.T) {
		calls := 0
		src := NewTokenSource(func(ctx context.Context) (string, time.Duration, error) {
			calls++
			if calls == 1 {
				return "", 0, errors.New("down")
			}
			return "tok", time.Hour, nil
		})
		_, err := src.Token(t.Context())
		require.Error(t, err)
		tok, err := src.Token(t.Context())
		require.NoError(t, err)
		require.Equal(t, "tok", tok)
	})
}
