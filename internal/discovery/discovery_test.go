package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleHost_ExternalBaseURL(t *testing.T) {
	d, err := NewSingleHost("http://localhost:7007")
	require.NoError(t, err)

	u, err := d.ExternalBaseURL("proxy")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:7007/api/proxy", u)
}

func TestSingleHost_TrailingSlashBaseURL(t *testing.T) {
	d, err := NewSingleHost("https://gw.example.com/")
	require.NoError(t, err)

	u, err := d.ExternalBaseURL("proxy")
	require.NoError(t, err)
	assert.Equal(t, "https://gw.example.com/api/proxy", u)
}

func TestSingleHost_RejectsBadBaseURL(t *testing.T) {
	for _, bad := range []string{"", "not a url", "/relative/only", "localhost:7007"} {
		_, err := NewSingleHost(bad)
		assert.Error(t, err, "base url %q", bad)
	}
}

func TestSingleHost_EmptyPluginID(t *testing.T) {
	d, err := NewSingleHost("http://localhost:7007")
	require.NoError(t, err)
	_, err = d.ExternalBaseURL("")
	assert.Error(t, err)
}

func TestPathOf(t *testing.T) {
	cases := []struct{ in, want string }{
		{"http://localhost:7007/api/proxy", "/api/proxy"},
		{"https://gw.example.com/api/proxy/", "/api/proxy"},
		{"http://host/nested/base/api/plugin", "/nested/base/api/plugin"},
		{"http://host", ""},
	}
	for _, tc := range cases {
		got, err := PathOf(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "url %q", tc.in)
	}
}
