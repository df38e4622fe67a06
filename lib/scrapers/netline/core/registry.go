package core

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type Portal struct {
	Id    string `yaml:"id"`
	Name  string `yaml:"name"`
	Url   string `yaml:"url"`
	Match string `yaml:"match"`
}

const DefaultPortal = "ABX"

// both carriers run the same NetLine crew workspace behind keycloak
var builtinPortals = []Portal{
	{
		Id:    "ABX",
		Name:  "ABX Air",
		Url:   "https://crew.abxair.com/nlcrew/ui/netline/crew/crm-workspace/index.html#/iadp",
		Match: "ABX",
	},
	{
		Id:    "ATI",
		Name:  "Air Transport International",
		Url:   "https://crew.airtransport.cc/nlcrew/ui/netline/crew/crm-workspace/index.html#/iadp",
		Match: "ATI",
	},
}

type Registry struct {
	portals map[string]Portal
	// ids ordered for deterministic substring matching
	order []string
}

func NewRegistry(portals ...Portal) *Registry {
	r := &Registry{portals: map[string]Portal{}}
	for _, p := range builtinPortals {
		r.Add(p)
	}
	for _, p := range portals {
		r.Add(p)
	}
	return r
}

// Add inserts or replaces a portal.
func (r *Registry) Add(p Portal) {
	p.Id = strings.ToUpper(strings.TrimSpace(p.Id))
	if p.Match == "" {
		p.Match = p.Id
	}
	if _, exists := r.portals[p.Id]; !exists {
		r.order = append(r.order, p.Id)
		sort.Strings(r.order)
	}
	r.portals[p.Id] = p
}

// Resolve maps a user supplied airline or portal id to a portal. Exact
// ids win, then the first portal whose match string is contained in the
// input, anything unrecognized falls back to the default portal.
func (r *Registry) Resolve(airline string) Portal {
	key := strings.ToUpper(strings.TrimSpace(airline))
	if p, ok := r.portals[key]; ok {
		return p
	}
	for _, id := range r.order {
		p := r.portals[id]
		if id != DefaultPortal && p.Match != "" && strings.Contains(key, strings.ToUpper(p.Match)) {
			return p
		}
	}
	return r.portals[DefaultPortal]
}

func (r *Registry) Portals() []Portal {
	out := make([]Portal, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.portals[id])
	}
	return out
}

type registryFile struct {
	Portals []Portal `yaml:"portals"`
}

// LoadRegistry reads additional portals (or url overrides for the
// builtin ones) from a yaml file.
func LoadRegistry(path string) (*Registry, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read portal registry: %w", err)
	}
	var file registryFile
	err = yaml.Unmarshal(contents, &file)
	if err != nil {
		return nil, fmt.Errorf("parse portal registry: %w", err)
	}

	r := NewRegistry()
	for _, p := range file.Portals {
		if p.Id == "" {
			return nil, fmt.Errorf("parse portal registry: portal without id")
		}
		existing, ok := r.portals[strings.ToUpper(p.Id)]
		if ok {
			if p.Url == "" {
				p.Url = existing.Url
			}
			if p.Name == "" {
				p.Name = existing.Name
			}
		}
		if p.Url == "" {
			return nil, fmt.Errorf("parse portal registry: portal %s has no url", p.Id)
		}
		r.Add(p)
	}
	return r, nil
}
