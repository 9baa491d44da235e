package routing

import (
	"errors"
	"strings"
)

type RouteClass string

const (
	RouteClassPublicAPI RouteClass = "public_api"
	RouteClassOps       RouteClass = "ops"
)

type Classifier struct {
	entrypoint string
	routes     map[string]Route
}

func NewClassifier(a Allowlist, entrypoint string) (*Classifier, error) {
	ep, ok := a.Entrypoints[entrypoint]
	if !ok {
		return nil, errors.New("allowlist: missing entrypoint")
	}
	if len(ep.Routes) == 0 {
		return nil, errors.New("allowlist: entrypoint routes empty")
	}

	routes := make(map[string]Route, len(ep.Routes))
	for _, r := range ep.Routes {
		if r.Path == "" || r.RouteClass == "" || !strings.HasPrefix(r.Path, "/") {
			return nil, errors.New("allowlist: invalid route")
		}
		switch RouteClass(r.RouteClass) {
		case RouteClassPublicAPI, RouteClassOps:
		default:
			return nil, errors.New("allowlist: unknown route_class " + r.RouteClass)
		}
		routes[r.Path] = r
	}
	return &Classifier{entrypoint: entrypoint, routes: routes}, nil
}

func (c *Classifier) Classify(path string) RouteClass {
	if r, ok := c.routes[path]; ok {
		return RouteClass(r.RouteClass)
	}
	switch {
	case path == "/metrics", hasPrefixSegment(path, "/health"), hasPrefixSegment(path, "/healthz"):
		return RouteClassOps
	default:
		return RouteClassPublicAPI
	}
}

// Allowed reports whether the allowlist lists method on path.
func (c *Classifier) Allowed(method, path string) bool {
	r, ok := c.routes[path]
	return ok && r.allows(method)
}

func hasPrefixSegment(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
