// Package discovery resolves externally-reachable base URLs for plugins
// hosted by this process.
package discovery

import (
	"fmt"
	"net/url"
	"strings"
)

// Discovery reports where a plugin is reachable from outside the process.
type Discovery interface {
	ExternalBaseURL(pluginID string) (string, error)
}

// SingleHost derives every plugin's external base URL from one configured
// base URL, as {baseUrl}/api/{pluginId}.
type SingleHost struct {
	baseURL string
}

func NewSingleHost(baseURL string) (*SingleHost, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("discovery: parse base url: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("discovery: base url must be absolute: %q", baseURL)
	}
	return &SingleHost{baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (d *SingleHost) ExternalBaseURL(pluginID string) (string, error) {
	if pluginID == "" {
		return "", fmt.Errorf("discovery: empty plugin id")
	}
	return d.baseURL + "/api/" + pluginID, nil
}

// PathOf extracts the path component of an external base URL, without a
// trailing slash. The proxy mounts itself under this path.
func PathOf(externalBaseURL string) (string, error) {
	u, err := url.Parse(externalBaseURL)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(u.Path, "/"), nil
}
