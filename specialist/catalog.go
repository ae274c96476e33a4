package specialist

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/studymesh/agent"
)

// Agent names of the default catalog.
const (
	TaskPlanner     = "task_planner"
	ResearchAgent   = "research_agent"
	ProgressAnalyst = "progress_analyst"
	ContentCreator  = "content_creator"
	DeadlineParser  = "deadline_parser"
	StudySprint     = "study_sprint"
	WeeklyShowcase  = "weekly_showcase"
	Orchestrator    = "productivity_orchestrator"
)

// DefaultCatalogYAML is the built-in agent catalog.
//
//go:embed catalog.yaml
var DefaultCatalogYAML []byte

// Catalog is the YAML document listing agent definitions.
type Catalog struct {
	Agents []agent.Definition `yaml:"agents"`
}

// ParseCatalog decodes a catalog document and validates its definitions.
func ParseCatalog(data []byte) ([]agent.Definition, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Agents) == 0 {
		return nil, fmt.Errorf("catalog defines no agents")
	}
	for i := range c.Agents {
		if c.Agents[i].Kind == "" {
			c.Agents[i].Kind = agent.KindModel
		}
	}
	if err := agent.ValidateDefinitions(c.Agents); err != nil {
		return nil, err
	}
	return c.Agents, nil
}

// DefaultDefinitions returns the definitions of the built-in catalog.
func DefaultDefinitions() []agent.Definition {
	defs, err := ParseCatalog(DefaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("specialist: invalid built-in catalog: %v", err))
	}
	return defs
}
