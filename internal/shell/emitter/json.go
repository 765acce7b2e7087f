package emitter

import (
	"encoding/json"

	"github.com/artpar/buildgen/internal/core/plan"
	"github.com/artpar/buildgen/internal/shell/output"
)

// PlanFileName is the file written by the JSON backend.
const PlanFileName = "buildplan.json"

// JSON renders the plan itself for external tooling.
type JSON struct{}

// NewJSON creates the JSON backend.
func NewJSON() *JSON { return &JSON{} }

func (*JSON) Name() string { return "json" }

// Accepts takes any plan.
func (*JSON) Accepts(bp *plan.BuildPlan) error {
	if bp == nil {
		return &RejectError{Backend: "json", Reason: "no plan", Err: ErrPlanRequired}
	}
	return nil
}

func (*JSON) Render(bp *plan.BuildPlan) ([]output.File, error) {
	data, err := json.MarshalIndent(bp, "", "  ")
	if err != nil {
		return nil, err
	}
	return []output.File{{Path: PlanFileName, Content: append(data, '\n')}}, nil
}
