package proxy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mlindgren/routeproxy/internal/config"
)

// DefaultRewrite derives the rewrite applied when a route declares none: the
// external mount path plus the route segment (trailing slash optional) is
// stripped and replaced with "/", leaving the remainder of the request path
// for the upstream.
func DefaultRewrite(pathPrefix, route string) config.RewriteRules {
	routeWithSlash := route
	if !strings.HasSuffix(routeWithSlash, "/") {
		routeWithSlash += "/"
	}
	// Avoid a doubled or missing slash at the prefix/route boundary.
	switch {
	case !strings.HasSuffix(pathPrefix, "/") && !strings.HasPrefix(routeWithSlash, "/"):
		routeWithSlash = "/" + routeWithSlash
	case strings.HasSuffix(pathPrefix, "/") && strings.HasPrefix(routeWithSlash, "/"):
		routeWithSlash = routeWithSlash[1:]
	}
	return config.RewriteRules{{
		Pattern:     "^" + regexp.QuoteMeta(pathPrefix+routeWithSlash) + "?",
		Replacement: "/",
	}}
}

type rewriteRule struct {
	re   *regexp.Regexp
	repl string
}

func compileRewrites(rules config.RewriteRules) ([]rewriteRule, error) {
	out := make([]rewriteRule, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("pathRewrite %q: %w", r.Pattern, err)
		}
		out = append(out, rewriteRule{re: re, repl: r.Replacement})
	}
	return out, nil
}

// applyRewrites rewrites the path with the first matching rule. Only the
// first occurrence of the pattern is replaced; replacement templates may
// reference capture groups with $1 syntax.
func applyRewrites(rules []rewriteRule, path string) string {
	for _, r := range rules {
		loc := r.re.FindStringSubmatchIndex(path)
		if loc == nil {
			continue
		}
		var b []byte
		b = append(b, path[:loc[0]]...)
		b = r.re.ExpandString(b, r.repl, path, loc)
		b = append(b, path[loc[1]:]...)
		return string(b)
	}
	return path
}
