package tools

import (
	"sort"
	"strings"

	"github.com/ggonzalez94/yieldsensei/internal/model"
)

// Set is a name-indexed collection of tools.
type Set struct {
	byName map[string]Tool
}

func NewSet(tools ...Tool) *Set {
	s := &Set{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		s.byName[t.Info().Name] = t
	}
	return s
}

func (s *Set) Get(name string) (Tool, bool) {
	t, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// Infos lists tool metadata sorted by name.
func (s *Set) Infos() []model.ToolInfo {
	out := make([]model.ToolInfo, 0, len(s.byName))
	for _, t := range s.byName {
		out = append(out, t.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
