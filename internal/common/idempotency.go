package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const idemKeyPrefix = "price:idem:"

// Idem rejects replays of admin mutations that carry an Idempotency-Key
// header. Requests without the header pass through untouched.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

// Middleware claims the key before the handler runs. A second request with
// the same key inside the TTL gets a 409 instead of re-running the mutation.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}

		claimed, err := i.R.SetNX(r.Context(), idemKey(header), "claimed", i.TTL).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, CodeInternal, "idempotency store error", nil)
			return
		}
		if !claimed {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}

		defer func() {
			// Re-arm the expiry so the key survives handler panics.
			_ = i.R.Expire(context.Background(), idemKey(header), i.TTL).Err()
		}()
		next.ServeHTTP(w, r)
	})
}

func idemKey(header string) string {
	sum := sha256.Sum256([]byte(header))
	return idemKeyPrefix + hex.EncodeToString(sum[:])
}
