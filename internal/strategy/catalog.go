// Package strategy holds the static catalog of yield strategies and its
// per-facet projections.
package strategy

import (
	"strings"

	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
)

// NotRecognized is the message every facet returns for an unknown strategy.
const NotRecognized = "Strategy not recognized or not enough info in query."

type Definition struct {
	ID                    string
	Name                  string
	MatchTerm             string
	EstimatedAPYRange     string
	ProtocolHint          string
	Risks                 []string
	Steps                 []string
	SupportingProtocols   []string
	HistoricalPerformance map[string]string
}

// Catalog is read-only after construction.
type Catalog struct {
	families []string
	defs     []Definition
}

func NewCatalog(families []string, defs []Definition) *Catalog {
	c := &Catalog{families: append([]string{}, families...)}
	for _, d := range defs {
		c.defs = append(c.defs, d.clone())
	}
	return c
}

func Default() *Catalog { return NewCatalog(families, definitions) }

func (d Definition) clone() Definition {
	d.Risks = append([]string{}, d.Risks...)
	d.Steps = append([]string{}, d.Steps...)
	d.SupportingProtocols = append([]string{}, d.SupportingProtocols...)
	perf := make(map[string]string, len(d.HistoricalPerformance))
	for k, v := range d.HistoricalPerformance {
		perf[k] = v
	}
	d.HistoricalPerformance = perf
	return d
}

// List returns every strategy family, including those without detail.
func (c *Catalog) List() []string { return append([]string{}, c.families...) }

// Find returns the first definition whose match term occurs in the query.
func (c *Catalog) Find(query string) (Definition, bool) {
	q := strings.ToLower(query)
	for _, d := range c.defs {
		if strings.Contains(q, d.MatchTerm) {
			return d.clone(), true
		}
	}
	return Definition{}, false
}

func (c *Catalog) Get(id string) (Definition, bool) {
	for _, d := range c.defs {
		if d.ID == id {
			return d.clone(), true
		}
	}
	return Definition{}, false
}

// MatchTerms returns the detailed strategies' match terms in catalog order.
func (c *Catalog) MatchTerms() []string {
	out := make([]string, 0, len(c.defs))
	for _, d := range c.defs {
		out = append(out, d.MatchTerm)
	}
	return out
}

type Estimate struct {
	Strategy     string `json:"strategy"`
	EstimatedAPY string `json:"estimated_apy"`
	Protocol     string `json:"protocol"`
}

type Risks struct {
	Strategy string   `json:"strategy"`
	Risks    []string `json:"risks"`
}

type Guide struct {
	Strategy string   `json:"strategy"`
	Steps    []string `json:"steps"`
}

type Support struct {
	Strategy  string   `json:"strategy"`
	Protocols []string `json:"protocols"`
}

type History struct {
	Strategy              string            `json:"strategy"`
	HistoricalPerformance map[string]string `json:"historical_performance"`
}

func (c *Catalog) Estimate(query string) (Estimate, error) {
	d, err := c.find(query)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{Strategy: d.Name, EstimatedAPY: d.EstimatedAPYRange, Protocol: d.ProtocolHint}, nil
}

func (c *Catalog) Risks(query string) (Risks, error) {
	d, err := c.find(query)
	if err != nil {
		return Risks{}, err
	}
	return Risks{Strategy: d.Name, Risks: d.Risks}, nil
}

func (c *Catalog) Guide(query string) (Guide, error) {
	d, err := c.find(query)
	if err != nil {
		return Guide{}, err
	}
	return Guide{Strategy: d.Name, Steps: d.Steps}, nil
}

func (c *Catalog) Support(query string) (Support, error) {
	d, err := c.find(query)
	if err != nil {
		return Support{}, err
	}
	return Support{Strategy: d.Name, Protocols: d.SupportingProtocols}, nil
}

func (c *Catalog) History(query string) (History, error) {
	d, err := c.find(query)
	if err != nil {
		return History{}, err
	}
	return History{Strategy: d.Name, HistoricalPerformance: d.HistoricalPerformance}, nil
}

func (c *Catalog) find(query string) (Definition, error) {
	d, ok := c.Find(query)
	if !ok {
		return Definition{}, clierr.New(clierr.CodeNotFound, NotRecognized)
	}
	return d, nil
}
