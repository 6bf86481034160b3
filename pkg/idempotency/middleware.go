package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

const (
	Header         = "Idempotency-Key"
	pendingMarker  = "pending"
	maxKeyLength   = 255
	replayedHeader = "Idempotent-Replayed"
)

type storedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Middleware replays the stored response for a repeated Idempotency-Key.
// scope partitions keys, typically by caller, so two users cannot collide.
// Requests without the header pass through. A nil store disables the check.
func Middleware(store *Store, log *slog.Logger, scope func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idemKey := r.Header.Get(Header)
			if idemKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(idemKey) > maxKeyLength {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "validation_error", "detail": "Idempotency-Key too long"})
				return
			}
			ctx := r.Context()
			key := "idem:http:" + scope(r) + ":" + r.Method + ":" + r.URL.Path + ":" + idemKey

			claimed, err := store.Claim(ctx, key, pendingMarker)
			if err != nil {
				log.Error("idempotency claim failed", "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if !claimed {
				replay(w, r, store, log, key)
				return
			}

			// The outcome is stored even when the client has gone away.
			ctx = context.WithoutCancel(ctx)
			release := func() {
				if err := store.Release(ctx, key); err != nil {
					log.Error("idempotency release failed", "err", err)
				}
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			completed := false
			defer func() {
				if !completed {
					release()
				}
			}()
			next.ServeHTTP(rec, r)
			completed = true

			if rec.status >= http.StatusInternalServerError {
				release()
				return
			}
			raw, _ := json.Marshal(storedResponse{Status: rec.status, Body: rec.body.Bytes()})
			if err := store.Save(ctx, key, string(raw)); err != nil {
				log.Error("idempotency save failed", "err", err)
				release()
			}
		})
	}
}

func replay(w http.ResponseWriter, r *http.Request, store *Store, log *slog.Logger, key string) {
	v, ok, err := store.Load(r.Context(), key)
	if err != nil {
		log.Error("idempotency load failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "detail": "internal server error"})
		return
	}
	if !ok || v == pendingMarker {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "conflict", "detail": "request with this Idempotency-Key is in progress"})
		return
	}
	var resp storedResponse
	if err := json.Unmarshal([]byte(v), &resp); err != nil {
		log.Error("idempotency record corrupt", "key", key, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "detail": "internal server error"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
