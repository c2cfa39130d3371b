package core

import (
	"fmt"
	"strings"
)

// Module identifies one of the content modules that partition all searchable
// marketplace content. The zero value means the module is unknown.
type Module string

const (
	NoModule Module = ""
	Rentals  Module = "rentals"
	HomeSwap Module = "homeswap"
	Services Module = "services"
	Events   Module = "events"
	Travel   Module = "travel"
	Ads      Module = "ads"
)

// AllModules lists every module in classification priority order.
var AllModules = []Module{Rentals, HomeSwap, Services, Events, Travel, Ads}

// ModuleTag is the record key used to carry a module hint on raw records
// fetched from a module-specific endpoint.
const ModuleTag = "__module"

// Valid reports whether m is one of the known modules.
func (m Module) Valid() bool {
	for _, known := range AllModules {
		if m == known {
			return true
		}
	}
	return false
}

func (m Module) String() string {
	return string(m)
}

// ParseModule converts user input into a Module. It accepts the canonical
// keys plus the "home-swap" spelling used by some endpoints.
func ParseModule(s string) (Module, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch key {
	case "home-swap", "home_swap":
		key = string(HomeSwap)
	}
	m := Module(key)
	if !m.Valid() {
		return NoModule, fmt.Errorf("unknown module %q", s)
	}
	return m, nil
}

// ParseModules parses a list of module names, skipping blanks. An empty input
// yields an empty list, which callers treat as "all modules".
func ParseModules(names []string) ([]Module, error) {
	var modules []Module
	seen := make(map[Module]bool)
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			m, err := ParseModule(part)
			if err != nil {
				return nil, err
			}
			if seen[m] {
				continue
			}
			seen[m] = true
			modules = append(modules, m)
		}
	}
	return modules, nil
}

// ModuleDescriptor holds the endpoint and route templates for one module.
// Templates use the literal placeholder "{id}".
type ModuleDescriptor struct {
	Key        Module   `json:"key"`
	Label      string   `json:"label"`
	ListPaths  []string `json:"list_paths"`
	ExistsPath string   `json:"exists_path,omitempty"`
	Route      string   `json:"route,omitempty"`
}

// ExistsURL expands the existence template for id. It returns false when the
// module has no template or id is empty.
func (d ModuleDescriptor) ExistsURL(id string) (string, bool) {
	if d.ExistsPath == "" || id == "" {
		return "", false
	}
	return expand(d.ExistsPath, id), true
}

// RouteFor expands the detail route template for id.
func (d ModuleDescriptor) RouteFor(id string) (string, bool) {
	if d.Route == "" || id == "" {
		return "", false
	}
	return expand(d.Route, id), true
}

func expand(template, id string) string {
	return strings.ReplaceAll(template, "{id}", id)
}

// DefaultDescriptor returns the conventional descriptor for m.
func DefaultDescriptor(m Module) ModuleDescriptor {
	slug := string(m)
	existsSlug := slug
	label := strings.ToUpper(slug[:1]) + slug[1:]
	if m == HomeSwap {
		existsSlug = "home-swap"
		label = "Home swap"
	}
	return ModuleDescriptor{
		Key:        m,
		Label:      label,
		ListPaths:  []string{"/api/" + slug, "/" + slug},
		ExistsPath: "/api/" + existsSlug + "/{id}",
		Route:      "/app/" + slug + "/{id}",
	}
}
