package routing

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Allowlist is config/routing/allowlist.yaml: for each binary, every path it
// may serve with its methods and route class. A handler registered outside
// the list makes NewHandlerWithOptions fail.
type Allowlist struct {
	Version     int                   `yaml:"version"`
	Entrypoints map[string]Entrypoint `yaml:"entrypoints"`
}

type Entrypoint struct {
	Routes []Route `yaml:"routes"`
}

// Route lists one path. An empty Methods list allows any method.
type Route struct {
	Path       string   `yaml:"path"`
	Methods    []string `yaml:"methods"`
	RouteClass string   `yaml:"route_class"`
}

func (r Route) allows(method string) bool {
	return len(r.Methods) == 0 || slices.Contains(r.Methods, method)
}

// ParseAllowlistYAML decodes version 1 allowlists and upper-cases methods so
// "get" and "GET" mean the same route.
func ParseAllowlistYAML(b []byte) (Allowlist, error) {
	var a Allowlist
	if err := yaml.Unmarshal(b, &a); err != nil {
		return Allowlist{}, fmt.Errorf("allowlist: %w", err)
	}
	if a.Version != 1 {
		return Allowlist{}, fmt.Errorf("allowlist: unsupported version %d", a.Version)
	}
	if a.Entrypoints == nil {
		return Allowlist{}, errors.New("allowlist: missing entrypoints")
	}
	for name, ep := range a.Entrypoints {
		for i := range ep.Routes {
			for j, m := range ep.Routes[i].Methods {
				ep.Routes[i].Methods[j] = strings.ToUpper(strings.TrimSpace(m))
			}
		}
		a.Entrypoints[name] = ep
	}
	return a, nil
}

func LoadAllowlist(path string) (Allowlist, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Allowlist{}, err
	}
	return ParseAllowlistYAML(b)
}
