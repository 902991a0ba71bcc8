package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"journal-insights/internal/domain"
)

// CachedVerifier кэширует успешные проверки токена, чтобы не ходить
// к провайдеру на каждый запрос. Ключ — хэш токена, сам токен в кэш
// не попадает. Отказы не кэшируются.
type CachedVerifier struct {
	inner domain.IdentityVerifier
	cache domain.Cache
	ttl   time.Duration
	log   zerolog.Logger
}

var _ domain.IdentityVerifier = (*CachedVerifier)(nil)

// NewCached оборачивает проверяющего кэшем с заданным TTL.
func NewCached(inner domain.IdentityVerifier, cache domain.Cache, ttl time.Duration, logger zerolog.Logger) *CachedVerifier {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedVerifier{inner: inner, cache: cache, ttl: ttl, log: logger}
}

// Verify сначала смотрит в кэш, затем идёт к провайдеру.
func (v *CachedVerifier) Verify(ctx context.Context, token string) (domain.Identity, error) {
	key := cacheKey(token)
	if data, err := v.cache.Get(key); err == nil && len(data) > 0 {
		var identity domain.Identity
		if err := json.Unmarshal(data, &identity); err == nil && identity.Subject != "" {
			return identity, nil
		}
	}

	identity, err := v.inner.Verify(ctx, token)
	if err != nil {
		return domain.Identity{}, err
	}

	if data, err := json.Marshal(identity); err == nil {
		if err := v.cache.Set(key, data, v.ttl); err != nil {
			v.log.Warn().Err(err).Msg("identity: не удалось записать кэш")
		}
	}
	return identity, nil
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "identity:" + hex.EncodeToString(sum[:])
}
