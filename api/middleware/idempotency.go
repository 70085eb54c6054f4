package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/microgem/storefront-backend/api/responses"
	"github.com/microgem/storefront-backend/api/validators"
	pkgerrors "github.com/microgem/storefront-backend/pkg/errors"
	"github.com/microgem/storefront-backend/pkg/logger"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotencyReplayHeader marks a response served from a stored record.
	IdempotencyReplayHeader = "Idempotent-Replayed"

	CartIdempotencyTTL  = 24 * time.Hour
	OrderIdempotencyTTL = 7 * 24 * time.Hour

	maxIdempotencyKeyLen = 255
	// A claim left behind by a crashed request frees the key after this long.
	idempotencyClaimTTL = 2 * time.Minute
)

const (
	recordPending  = "pending"
	recordComplete = "complete"
)

// IdempotencyStore holds claims and completed responses.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	SetXX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type idempotencyRecord struct {
	State       string            `json:"state"`
	RequestHash string            `json:"request_hash"`
	Status      int               `json:"status,omitempty"`
	Body        string            `json:"body,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// replayedHeaders are copied into a completed record and restored on replay.
var replayedHeaders = []string{"Content-Type", CartTokenHeader}

// Idempotency makes a route safe to retry when the client sends an
// Idempotency-Key. The first request claims the key; a duplicate arriving
// while it runs gets 409, one arriving after it finished gets the stored
// response. Server errors release the claim so the client can retry.
// Requests without the header pass through untouched.
func Idempotency(store IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if store == nil || id == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(id) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long"))
				return
			}

			if r.Body == nil {
				r.Body = http.NoBody
			}
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validators.MaxBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation,
						fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)))
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := hashBody(body)
			key := store.IdempotencyKey(idempotencyScope(r), id)

			claim, _ := json.Marshal(idempotencyRecord{State: recordPending, RequestHash: hash})
			claimed, err := store.SetNX(ctx, key, string(claim), idempotencyClaimTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replayOrReject(w, r, store, key, hash, logg)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil && logg != nil {
					logg.Error(ctx, "idempotency.release_failed", err)
				}
				return
			}

			done := idempotencyRecord{
				State:       recordComplete,
				RequestHash: hash,
				Status:      status,
				Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
				Headers:     map[string]string{},
			}
			for _, h := range replayedHeaders {
				if v := capture.Header().Get(h); v != "" {
					done.Headers[h] = v
				}
			}
			payload, err := json.Marshal(done)
			if err != nil {
				if logg != nil {
					logg.Error(ctx, "idempotency.encode_failed", err)
				}
				return
			}
			if ok, err := store.SetXX(ctx, key, string(payload), ttl); err != nil || !ok {
				// The claim expired mid-request; store the result if nobody else has.
				if err == nil {
					_, err = store.SetNX(ctx, key, string(payload), ttl)
				}
				if err != nil && logg != nil {
					logg.Error(ctx, "idempotency.persist_failed", err)
				}
			}
		})
	}
}

func replayOrReject(w http.ResponseWriter, r *http.Request, store IdempotencyStore, key, hash string, logg *logger.Logger) {
	ctx := r.Context()
	stored, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case record.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case record.State != recordComplete:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
	default:
		for h, v := range record.Headers {
			w.Header().Set(h, v)
		}
		w.Header().Set(IdempotencyReplayHeader, "true")
		w.WriteHeader(record.Status)
		if decoded, err := base64.StdEncoding.DecodeString(record.Body); err == nil {
			_, _ = w.Write(decoded)
		}
	}
}

// idempotencyScope keeps keys from colliding across tenants, carts and routes.
func idempotencyScope(r *http.Request) string {
	ctx := r.Context()
	return strings.Join([]string{
		TenantDomainFromContext(ctx),
		CartTokenFromContext(ctx),
		r.Method,
		r.URL.Path,
	}, "|")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
