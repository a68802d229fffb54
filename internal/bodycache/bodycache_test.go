package bodycache

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapture_DownstreamSeesUnchangedStream(t *testing.T) {
	var got string
	h := Capture(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		got = string(b)
	}))

	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("payload"))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "payload", got)
}

func TestCapture_ReviveAfterDrain(t *testing.T) {
	h := Capture(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body) // a parser consumed the stream

		cached := FromContext(r.Context())
		require.NotNil(t, cached)
		rc, n := cached.Revive()
		defer rc.Close()
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(b))
		assert.Equal(t, int64(7), n)

		// Revive always starts from the beginning
		rc2, _ := cached.Revive()
		b, _ = io.ReadAll(rc2)
		assert.Equal(t, "payload", string(b))
	}))

	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("payload"))
	h.ServeHTTP(httptest.NewRecorder(), req)
}

func TestCapture_NoBody(t *testing.T) {
	h := Capture(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Nil(t, FromContext(r.Context()))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
}

func TestFromContext_WithoutCapture(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("payload"))
	assert.Nil(t, FromContext(req.Context()))
}
