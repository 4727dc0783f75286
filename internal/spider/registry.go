package spider

import (
	"errors"
	"log"
	"net/url"
	"strings"
)

var ErrUnsupported = errors.New("no spider registered for domain")

// Registry maps URL domains to registered spiders. Pure lookup, no network.
type Registry struct {
	spiders map[string]Spider
	domains map[string]string // host -> spider name
}

func NewRegistry() *Registry {
	return &Registry{
		spiders: make(map[string]Spider),
		domains: make(map[string]string),
	}
}

// Register adds a spider and the domains it handles. Hosts are matched
// exactly after lowercasing, so "royalroad.com" and "www.royalroad.com"
// both need registering if both are expected.
func (r *Registry) Register(s Spider, domains ...string) {
	r.spiders[s.Name()] = s
	for _, d := range domains {
		r.domains[strings.ToLower(d)] = s.Name()
	}
}

// Resolve picks the spider for a URL by its host. Scheme and path are
// ignored.
func (r *Registry) Resolve(rawURL string) (Spider, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, ErrUnsupported
	}

	host := strings.ToLower(u.Hostname())
	name, ok := r.domains[host]
	if !ok {
		log.Printf("[spider] warning: no spider registered for domain: %s", host)
		return nil, ErrUnsupported
	}
	return r.spiders[name], nil
}

// IsSupported reports whether some registered spider handles the URL.
func (r *Registry) IsSupported(rawURL string) bool {
	_, err := r.Resolve(rawURL)
	return err == nil
}
