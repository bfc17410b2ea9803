package websocket

import (
	"fmt"
	"net/url"
	"slices"
)

// OriginValidator interface for WebSocket origin validation
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}

// HostOriginValidator allows the server's own host plus an explicit list of
// extra origins. A "*" entry allows everything.
type HostOriginValidator struct {
	hosts   []string
	origins []string
}

// NewOriginValidator builds a validator for a server listening on host:port.
func NewOriginValidator(host string, port int, allowed []string) *HostOriginValidator {
	hosts := []string{
		fmt.Sprintf("%s:%d", host, port),
		fmt.Sprintf("localhost:%d", port),
		fmt.Sprintf("127.0.0.1:%d", port),
	}
	return &HostOriginValidator{hosts: hosts, origins: allowed}
}

// IsAllowedOrigin reports whether a browser at origin may connect. An empty
// origin is a same-origin or non-browser request and is allowed.
func (v *HostOriginValidator) IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	if slices.Contains(v.origins, "*") || slices.Contains(v.origins, origin) {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	return slices.Contains(v.hosts, u.Host)
}
