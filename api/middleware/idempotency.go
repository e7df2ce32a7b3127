package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gasflow/ops-console/api/responses"
	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
	"github.com/gasflow/ops-console/pkg/logger"
	pkgredis "github.com/gasflow/ops-console/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	orderActionPrefix = "/api/v1/orders/"

	defaultIdempotencyTTL = 24 * time.Hour
	// cancel and return are terminal, so a late replay must still be caught.
	criticalIdempotencyTTL = 7 * 24 * time.Hour
)

// orderActionTTL lists the POST order actions that require a key, by path suffix.
// Longer suffixes come first so "/assign/retry" is not read as "/assign".
var orderActionTTL = []struct {
	suffix string
	ttl    time.Duration
}{
	{"/assign/retry", defaultIdempotencyTTL},
	{"/return/review", defaultIdempotencyTTL},
	{"/assign", defaultIdempotencyTTL},
	{"/status", defaultIdempotencyTTL},
	{"/payment", defaultIdempotencyTTL},
	{"/cancel", criticalIdempotencyTTL},
	{"/return", criticalIdempotencyTTL},
}

// storedResponse is what a replay writes back.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency makes order actions safe to resubmit. The first response for a
// key is stored and replayed, a reused key with another body is rejected, and
// failures the operator is expected to retry (busy row, 5xx) are not stored.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, idempotencyHeader+" header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := hashBody(body)
			key := store.IdempotencyKey(idempotencyScope(r), clientKey)

			prior, err := lookupResponse(ctx, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store unavailable"))
				return
			}
			if prior != nil {
				if prior.RequestHash != hash {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request"))
					return
				}
				prior.replay(w)
				return
			}

			capture := &captureWriter{statusRecorder: statusRecorder{ResponseWriter: w}}
			next.ServeHTTP(capture, r)

			status := capture.finalStatus()
			if !storable(status) {
				return
			}
			payload, err := json.Marshal(storedResponse{
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
				RequestHash: hash,
			})
			if err == nil {
				_, err = store.SetNX(ctx, key, string(payload), ttl)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "persisting idempotent response failed", err)
			}
		})
	}
}

func routeTTL(method, path string) (time.Duration, bool) {
	if method != http.MethodPost || !strings.HasPrefix(path, orderActionPrefix) {
		return 0, false
	}
	for _, action := range orderActionTTL {
		if strings.HasSuffix(path, action.suffix) {
			return action.ttl, true
		}
	}
	return 0, false
}

// idempotencyScope keeps keys from colliding across operators and orders.
func idempotencyScope(r *http.Request) string {
	return strings.Join([]string{OperatorIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func lookupResponse(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set("Idempotent-Replay", "true")
	w.WriteHeader(s.Status)
	if body, err := base64.StdEncoding.DecodeString(s.Body); err == nil {
		_, _ = w.Write(body)
	}
}

func storable(status int) bool {
	return status < http.StatusInternalServerError && status != http.StatusConflict
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

type captureWriter struct {
	statusRecorder
	body bytes.Buffer
}

func (c *captureWriter) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.statusRecorder.Write(b)
}

func (c *captureWriter) finalStatus() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
