// Package bodycache buffers request bodies so a route can re-serialize a
// payload that earlier middleware already consumed.
package bodycache

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

type ctxKey struct{}

// Cached holds the buffered request payload.
type Cached struct {
	Bytes []byte
}

// Capture buffers the request body and stashes it in the request context
// before invoking next. The body handed to next reads from the buffer, so
// downstream consumers see the stream unchanged.
func Capture(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		b, err := io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(b))
		ctx := context.WithValue(r.Context(), ctxKey{}, &Cached{Bytes: b})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the buffered payload, or nil when Capture did not run.
func FromContext(ctx context.Context) *Cached {
	c, _ := ctx.Value(ctxKey{}).(*Cached)
	return c
}

// Revive returns a fresh reader over the buffered payload and its length.
// Callers use it to rebuild an outbound body regardless of how much of the
// original stream was consumed.
func (c *Cached) Revive() (io.ReadCloser, int64) {
	return io.NopCloser(bytes.NewReader(c.Bytes)), int64(len(c.Bytes))
}
