package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlindgren/routeproxy/internal/config"
)

func mustCompile(t *testing.T, rules config.RewriteRules) []rewriteRule {
	t.Helper()
	compiled, err := compileRewrites(rules)
	require.NoError(t, err)
	return compiled
}

func TestDefaultRewrite_StripsPrefixAndRoute(t *testing.T) {
	rules := mustCompile(t, DefaultRewrite("/api/proxy", "/github"))

	assert.Equal(t, "/", applyRewrites(rules, "/api/proxy/github"))
	assert.Equal(t, "/", applyRewrites(rules, "/api/proxy/github/"))
	assert.Equal(t, "/repos/x", applyRewrites(rules, "/api/proxy/github/repos/x"))
}

func TestDefaultRewrite_SlashJoining(t *testing.T) {
	cases := []struct {
		prefix, route string
	}{
		{"/api/proxy", "/github"},  // slash on route side
		{"/api/proxy/", "/github"}, // slash on both sides: one dropped
		{"/api/proxy/", "github"},  // slash on prefix side
		{"/api/proxy", "github"},   // no slash on either side: one inserted
	}
	for _, tc := range cases {
		rules := mustCompile(t, DefaultRewrite(tc.prefix, tc.route))
		assert.Equal(t, "/v1", applyRewrites(rules, "/api/proxy/github/v1"),
			"prefix=%q route=%q", tc.prefix, tc.route)
		assert.Equal(t, "/", applyRewrites(rules, "/api/proxy/github"),
			"prefix=%q route=%q", tc.prefix, tc.route)
	}
}

func TestDefaultRewrite_RouteWithTrailingSlash(t *testing.T) {
	rules := mustCompile(t, DefaultRewrite("/api/proxy", "/github/"))
	assert.Equal(t, "/repos", applyRewrites(rules, "/api/proxy/github/repos"))
}

func TestApplyRewrites_FirstMatchingRuleWins(t *testing.T) {
	rules := mustCompile(t, config.RewriteRules{
		{Pattern: "^/old/v2/", Replacement: "/v2/"},
		{Pattern: "^/old/", Replacement: "/"},
	})
	assert.Equal(t, "/v2/x", applyRewrites(rules, "/old/v2/x"))
	assert.Equal(t, "/x", applyRewrites(rules, "/old/x"))
}

func TestApplyRewrites_NoMatchLeavesPathUntouched(t *testing.T) {
	rules := mustCompile(t, config.RewriteRules{{Pattern: "^/nope", Replacement: "/"}})
	assert.Equal(t, "/other/path", applyRewrites(rules, "/other/path"))
}

func TestApplyRewrites_CaptureGroups(t *testing.T) {
	rules := mustCompile(t, config.RewriteRules{
		{Pattern: "^/api/proxy/tenant/([^/]+)/", Replacement: "/t/$1/"},
	})
	assert.Equal(t, "/t/acme/users", applyRewrites(rules, "/api/proxy/tenant/acme/users"))
}

func TestCompileRewrites_BadPattern(t *testing.T) {
	_, err := compileRewrites(config.RewriteRules{{Pattern: "([", Replacement: "/"}})
	require.Error(t, err)
}
