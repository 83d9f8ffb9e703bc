package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/coachledger-backend/api/responses"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/coachledger-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	pendingIdempotencyTTL  = 2 * time.Minute
)

// replayRule binds a mutating route to how long its first response is kept.
type replayRule struct {
	method string
	match  func(path string) bool
	ttl    time.Duration
}

func profileWrite(method string, match func(string) bool) replayRule {
	return replayRule{method: method, match: match, ttl: defaultIdempotencyTTL}
}

func moneyWrite(method string, match func(string) bool) replayRule {
	return replayRule{method: method, match: match, ttl: criticalIdempotencyTTL}
}

var replayRules = []replayRule{
	profileWrite(http.MethodPut, pathIs("/api/v1/coach/payout-destination")),
	profileWrite(http.MethodPost, pathIs("/api/v1/coach/payout-identity")),
	profileWrite(http.MethodPut, pathIs("/api/admin/v1/settings")),
	profileWrite(http.MethodPut, pathUnder("/api/admin/v1/coaches/", "")),
	profileWrite(http.MethodPost, pathUnder("/api/admin/v1/payouts/", "/reconcile")),

	moneyWrite(http.MethodPost, pathIs("/api/v1/coach/payouts")),
	moneyWrite(http.MethodPost, pathUnder("/api/v1/coach/payouts/", "/cancel")),
	moneyWrite(http.MethodPost, pathIs("/api/admin/v1/sales")),
	moneyWrite(http.MethodPost, pathUnder("/api/admin/v1/transactions/", "/refund")),
	moneyWrite(http.MethodPost, pathIs("/api/admin/v1/adjustments")),
}

// storedResponse is the JSON document kept in redis per (caller, route, key).
// A zero Status marks a request that is still being handled.
type storedResponse struct {
	Status      int       `json:"status"`
	ContentType string    `json:"content_type,omitempty"`
	Body        []byte    `json:"body"`
	Fingerprint string    `json:"fingerprint"`
	StoredAt    time.Time `json:"stored_at"`
}

// Idempotency replays the first non-5xx response of a mutating ledger route
// when the same Idempotency-Key is presented again by the same caller.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := routeTTL(r.Method, routePattern(r))
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			payload, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(payload))

			fingerprint := fingerprintOf(payload)
			key := store.IdempotencyKey(callerScope(r), clientKey)

			prior, found, err := loadStored(ctx, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if found {
				prior.answer(ctx, logg, w, fingerprint)
				return
			}

			pending, _ := json.Marshal(storedResponse{Fingerprint: fingerprint, StoredAt: time.Now().UTC()})
			claimed, err := store.SetNX(ctx, key, string(pending), pendingIdempotencyTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				responses.WriteError(ctx, logg, w, errRequestInFlight)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			persistCtx := context.WithoutCancel(ctx)
			// server failures stay retryable under the same key
			if capture.status >= http.StatusInternalServerError {
				if err := store.Del(persistCtx, key); err != nil && logg != nil {
					logg.Error(ctx, "release idempotency key", err)
				}
				return
			}

			doc, err := json.Marshal(storedResponse{
				Status:      statusOrOK(capture.status),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				Fingerprint: fingerprint,
				StoredAt:    time.Now().UTC(),
			})
			if err == nil {
				err = store.Set(persistCtx, key, string(doc), ttl)
			}
			if err != nil && logg != nil {
				logg.Error(logg.WithField(ctx, "idempotency_key", clientKey), "persist idempotent response", err)
			}
		})
	}
}

var errRequestInFlight = pkgerrors.New(pkgerrors.CodeConflict, "a request with this Idempotency-Key is still in progress")

func loadStored(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedResponse, bool, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotent response")
	}
	return &stored, true, nil
}

// callerScope keys records by user, coach, method and concrete path so two
// coaches reusing a key never see each other's responses.
func callerScope(r *http.Request) string {
	coach := "-"
	if id, ok := CoachIDFromContext(r.Context()); ok {
		coach = id.String()
	}
	return strings.Join([]string{UserIDFromContext(r.Context()), coach, r.Method, r.URL.Path}, "|")
}

// answer responds to a repeated key from the stored record.
func (s *storedResponse) answer(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, fingerprint string) {
	switch {
	case s.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case s.Status == 0:
		responses.WriteError(ctx, logg, w, errRequestInFlight)
	default:
		s.replay(w)
	}
}

func (s *storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

func fingerprintOf(payload []byte) string {
	sum := sha256.Sum256(bytes.TrimSpace(payload))
	return hex.EncodeToString(sum[:])
}

func statusOrOK(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}

// routePattern prefers the chi pattern; group middleware only sees a partial
// pattern ending in /*, so the raw path is used then.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" && !strings.Contains(pattern, "*") {
			return pattern
		}
	}
	return r.URL.Path
}

func routeTTL(method, path string) (time.Duration, bool) {
	if path == "" {
		return 0, false
	}
	for _, rule := range replayRules {
		if rule.method == method && rule.match(path) {
			return rule.ttl, true
		}
	}
	return 0, false
}

func pathIs(want string) func(string) bool {
	return func(path string) bool { return path == want }
}

// pathUnder matches paths below prefix, optionally requiring a suffix.
func pathUnder(prefix, suffix string) func(string) bool {
	return func(path string) bool {
		return strings.HasPrefix(path, prefix) && strings.HasSuffix(path, suffix)
	}
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
