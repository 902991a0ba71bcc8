package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"journal-insights/internal/domain"
)

type stubVerifier struct {
	identity domain.Identity
	err      error
	calls    int
}

func (s *stubVerifier) Verify(context.Context, string) (domain.Identity, error) {
	s.calls++
	return s.identity, s.err
}

type memoryCache struct {
	data map[string][]byte
}

func newMemoryCache() *memoryCache { return &memoryCache{data: map[string][]byte{}} }

func (c *memoryCache) Once(string, time.Duration, func() error) error { return nil }

func (c *memoryCache) Set(key string, value []byte, _ time.Duration) error {
	c.data[key] = value
	return nil
}

func (c *memoryCache) Get(key string) ([]byte, error) {
	v, ok := c.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func TestCachedVerifierHitsInnerOnce(t *testing.T) {
	inner := &stubVerifier{identity: domain.Identity{Subject: "auth0|7", Email: "a@b.c"}}
	v := NewCached(inner, newMemoryCache(), time.Minute, zerolog.Nop())

	for i := 0; i < 3; i++ {
		identity, err := v.Verify(context.Background(), "token")
		if err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
		if identity.Subject != "auth0|7" {
			t.Fatalf("ожидали subject из провайдера, получили %q", identity.Subject)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("ожидали один поход к провайдеру, было %d", inner.calls)
	}
}

func TestCachedVerifierDoesNotCacheFailures(t *testing.T) {
	inner := &stubVerifier{err: errors.New("denied")}
	v := NewCached(inner, newMemoryCache(), time.Minute, zerolog.Nop())

	for i := 0; i < 2; i++ {
		if _, err := v.Verify(context.Background(), "bad"); err == nil {
			t.Fatalf("ожидали ошибку проверки")
		}
	}
	if inner.calls != 2 {
		t.Fatalf("отказ не должен кэшироваться, походов было %d", inner.calls)
	}
}

func TestCachedVerifierSeparatesTokens(t *testing.T) {
	inner := &stubVerifier{identity: domain.Identity{Subject: "auth0|7"}}
	v := NewCached(inner, newMemoryCache(), time.Minute, zerolog.Nop())

	if _, err := v.Verify(context.Background(), "one"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := v.Verify(context.Background(), "two"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("разные токены должны проверяться отдельно, походов было %d", inner.calls)
	}
}
