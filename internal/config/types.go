package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully parsed process configuration.
type Config struct {
	Listen        string
	MetricsListen string // empty => no metrics listener
	BaseURL       string
	Log           LogConfig
	Timeouts      Timeouts
	Proxy         ProxyConfig
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" | "console"
}

type Timeouts struct {
	Read     time.Duration
	Write    time.Duration
	Upstream time.Duration
}

// ProxyConfig is the declarative route table. Endpoints preserve declaration
// order; that order determines mount precedence.
type ProxyConfig struct {
	SkipInvalidProxies          bool
	ReviveConsumedRequestBodies bool
	Endpoints                   []Endpoint
}

// Endpoint is one route key with its raw (string-or-object) value.
type Endpoint struct {
	Route string
	Raw   RawRoute
}

// RawRoute is the tagged variant behind an endpoint value: either a bare
// target URL string or a detailed spec. Shape problems are recorded here and
// surfaced when the route is compiled, so the per-route skip policy can
// apply to them.
type RawRoute struct {
	Target   string     // set when the value was a scalar
	Spec     *RouteSpec // set when the value was a mapping
	ShapeErr string     // non-empty when the value had neither shape
}

func (r *RawRoute) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			r.ShapeErr = fmt.Sprintf("endpoint value must be a string or an object, got %s", value.Tag)
			return nil
		}
		r.Target = value.Value
	case yaml.MappingNode:
		spec := new(RouteSpec)
		if err := value.Decode(spec); err != nil {
			r.ShapeErr = err.Error()
			return nil
		}
		r.Spec = spec
	default:
		r.ShapeErr = "endpoint value must be a string or an object"
	}
	return nil
}

// RouteSpec is the detailed per-route configuration. Unknown keys are
// tolerated.
type RouteSpec struct {
	Target            string            `yaml:"target"`
	Headers           map[string]string `yaml:"headers"`
	AllowedMethods    []string          `yaml:"allowedMethods"`
	AllowedHeaders    []string          `yaml:"allowedHeaders"`
	PathRewrite       RewriteRules      `yaml:"pathRewrite"`
	ChangeOrigin      *bool             `yaml:"changeOrigin"` // nil => true
	ReviveRequestBody *bool             `yaml:"reviveRequestBody"`
	RateLimit         *RateLimit        `yaml:"rateLimit"`
	Proto             string            `yaml:"proto"` // transport name, default "http1"
}

type RateLimit struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

// RewritePair is one pattern -> replacement entry.
type RewritePair struct {
	Pattern     string
	Replacement string
}

// RewriteRules preserves the declaration order of a pathRewrite mapping;
// the first matching pattern wins when the rewrite is applied.
type RewriteRules []RewritePair

func (r *RewriteRules) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("pathRewrite must be a mapping of pattern to replacement")
	}
	rules := make(RewriteRules, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		var k, v string
		if err := value.Content[i].Decode(&k); err != nil {
			return fmt.Errorf("pathRewrite key: %w", err)
		}
		if err := value.Content[i+1].Decode(&v); err != nil {
			return fmt.Errorf("pathRewrite[%s]: %w", k, err)
		}
		rules = append(rules, RewritePair{Pattern: k, Replacement: v})
	}
	*r = rules
	return nil
}
