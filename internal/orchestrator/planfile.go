package orchestrator

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hoplite-search/hoplite"
)

// PlanFile is the YAML form of a multi-hop plan.
type PlanFile struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Hops        []PlanHop `yaml:"hops"`
}

// PlanHop is one hop declaration in a plan file. Param values may use
// dependency references (see expression.go).
type PlanHop struct {
	Name      string         `yaml:"name"`
	Tool      string         `yaml:"tool"`
	Params    map[string]any `yaml:"params"`
	DependsOn []string       `yaml:"depends_on"`
}

// LoadPlanFile parses a YAML plan file.
func LoadPlanFile(path string) (*PlanFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, hoplite.NewValidationError("planning", "failed to open plan file", err)
	}
	defer f.Close()

	var file PlanFile
	if err := yaml.NewDecoder(f).Decode(&file); err != nil {
		return nil, hoplite.NewValidationError("planning", "failed to parse plan YAML", err)
	}
	return &file, nil
}

// ToPlan converts the file into a validated Plan. Validation (duplicates,
// unknown dependencies, cycles) happens in hoplite.NewPlan.
func (f *PlanFile) ToPlan() (*hoplite.Plan, error) {
	hops := make([]hoplite.Hop, 0, len(f.Hops))
	for _, hop := range f.Hops {
		hops = append(hops, hoplite.Hop{
			Name:      hop.Name,
			Tool:      hop.Tool,
			Params:    hop.Params,
			DependsOn: hop.DependsOn,
		})
	}
	return hoplite.NewPlan(hops)
}

// LoadPlan loads and validates a plan file in one step.
func LoadPlan(path string) (*hoplite.Plan, error) {
	file, err := LoadPlanFile(path)
	if err != nil {
		return nil, err
	}
	return file.ToPlan()
}
