package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfigShape reports a proxy block whose top-level structure is
// wrong (not a mapping, or an array). This is always fatal: there is no
// per-route granularity to recover at.
var ErrInvalidConfigShape = errors.New("invalid proxy configuration shape")

type rawConfig struct {
	Listen        string    `yaml:"listen"`
	MetricsListen string    `yaml:"metricsListen"`
	BaseURL       string    `yaml:"baseUrl"`
	Log           LogConfig `yaml:"log"`
	Timeouts      struct {
		Read     string `yaml:"read"`
		Write    string `yaml:"write"`
		Upstream string `yaml:"upstream"`
	} `yaml:"timeouts"`
	Proxy yaml.Node `yaml:"proxy"`
}

// Load reads and validates the configuration file. The logger is used for
// deprecation warnings only.
func Load(path string, log *zap.Logger) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var rc rawConfig
	if err := yaml.Unmarshal(b, &rc); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}

	listen := ":7007"
	if strings.TrimSpace(rc.Listen) != "" {
		listen = strings.TrimSpace(rc.Listen)
	}
	baseURL := "http://localhost:7007"
	if strings.TrimSpace(rc.BaseURL) != "" {
		baseURL = strings.TrimSuffix(strings.TrimSpace(rc.BaseURL), "/")
	}

	proxy, err := parseProxy(&rc.Proxy, log)
	if err != nil {
		return nil, err
	}

	timeouts, err := parseTimeouts(rc.Timeouts.Read, rc.Timeouts.Write, rc.Timeouts.Upstream)
	if err != nil {
		return nil, err
	}

	return &Config{
		Listen:        listen,
		MetricsListen: strings.TrimSpace(rc.MetricsListen),
		BaseURL:       baseURL,
		Log:           rc.Log,
		Timeouts:      timeouts,
		Proxy:         *proxy,
	}, nil
}

// parseProxy interprets the proxy block. Route values stay raw (string or
// object); only the block structure is validated here. The deprecated shape
// with route keys directly under proxy is still accepted, detected by the
// leading slash alone, with a warning.
func parseProxy(node *yaml.Node, log *zap.Logger) (*ProxyConfig, error) {
	pc := &ProxyConfig{}
	if node == nil || node.Kind == 0 || node.Tag == "!!null" {
		return pc, nil // zero configured routes is legal
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: proxy must be a mapping", ErrInvalidConfigShape)
	}

	index := make(map[string]int)
	add := func(route string, value *yaml.Node) {
		var raw RawRoute
		_ = value.Decode(&raw) // shape errors are recorded inside RawRoute
		if i, ok := index[route]; ok {
			// duplicate key: last value wins, first position is kept
			pc.Endpoints[i].Raw = raw
			return
		}
		index[route] = len(pc.Endpoints)
		pc.Endpoints = append(pc.Endpoints, Endpoint{Route: route, Raw: raw})
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		value := node.Content[i+1]
		switch {
		case key == "endpoints":
			if value.Tag == "!!null" {
				continue
			}
			if value.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("%w: proxy.endpoints must be a mapping", ErrInvalidConfigShape)
			}
			for j := 0; j+1 < len(value.Content); j += 2 {
				add(value.Content[j].Value, value.Content[j+1])
			}
		case key == "skipInvalidProxies":
			if err := value.Decode(&pc.SkipInvalidProxies); err != nil {
				return nil, fmt.Errorf("proxy.skipInvalidProxies: %w", err)
			}
		case key == "reviveConsumedRequestBodies":
			if err := value.Decode(&pc.ReviveConsumedRequestBodies); err != nil {
				return nil, fmt.Errorf("proxy.reviveConsumedRequestBodies: %w", err)
			}
		case strings.HasPrefix(key, "/"):
			log.Warn("deprecated proxy configuration shape, move the route under proxy.endpoints",
				zap.String("route", key))
			add(key, value)
		}
	}
	return pc, nil
}

func parseTimeouts(read, write, upstream string) (Timeouts, error) {
	var t Timeouts
	parse := func(name, s string, dst *time.Duration) error {
		if s == "" {
			return nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("timeouts.%s: %v", name, err)
		}
		*dst = d
		return nil
	}
	if err := parse("read", read, &t.Read); err != nil {
		return t, err
	}
	if err := parse("write", write, &t.Write); err != nil {
		return t, err
	}
	if err := parse("upstream", upstream, &t.Upstream); err != nil {
		return t, err
	}
	return t, nil
}
