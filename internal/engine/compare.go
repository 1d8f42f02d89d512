package engine

import (
	"fmt"

	"github.com/piwi3910/CutYield/internal/model"
)

// ComparisonScenario defines a named set of settings to compare.
type ComparisonScenario struct {
	Name     string
	Settings model.CutSettings
}

// ComparisonResult holds the optimization result and computed statistics
// for a single scenario.
type ComparisonResult struct {
	Scenario      ComparisonScenario
	Result        model.PackingResult
	PlacedCount   int
	UnplacedCount int
	Utilization   float64
	WastePercent  float64
}

// CompareScenarios runs the optimizer once per scenario on the same sheet and
// pieces and returns the results in scenario order.
func CompareScenarios(scenarios []ComparisonScenario, sheet model.StockSheet, pieces []model.Piece) []ComparisonResult {
	results := make([]ComparisonResult, 0, len(scenarios))

	for _, scenario := range scenarios {
		result := New(scenario.Settings).Optimize(sheet, pieces)

		results = append(results, ComparisonResult{
			Scenario:      scenario,
			Result:        result,
			PlacedCount:   len(result.Placements),
			UnplacedCount: len(result.Unplaced),
			Utilization:   result.UtilizationPercent,
			WastePercent:  100.0 - result.UtilizationPercent,
		})
	}

	return results
}

// BuildKerfScenarios generates what-if scenarios around the current kerf:
// the current blade, a zero-kerf reference, a blade half as wide and one
// twice as wide.
func BuildKerfScenarios(base model.CutSettings) []ComparisonScenario {
	scenarios := []ComparisonScenario{
		{
			Name:     "Current Settings",
			Settings: base,
		},
	}

	if base.Kerf > 0 {
		zero := base
		zero.Kerf = 0
		scenarios = append(scenarios, ComparisonScenario{
			Name:     "No Kerf",
			Settings: zero,
		})

		half := base
		half.Kerf = base.Kerf * 0.5
		scenarios = append(scenarios, ComparisonScenario{
			Name:     fmt.Sprintf("Kerf %.1fmm (half)", half.Kerf),
			Settings: half,
		})

		double := base
		double.Kerf = base.Kerf * 2
		scenarios = append(scenarios, ComparisonScenario{
			Name:     fmt.Sprintf("Kerf %.1fmm (double)", double.Kerf),
			Settings: double,
		})
	}

	return scenarios
}
