package pipeline

import (
	"fmt"
	"strings"

	"github.com/gridguard/leop/internal/planengine"
)

// FormatPlan renders plan in the literal text layout the wire protocol
// uses, including the "Processing request..." line: the Compute stage
// owns the whole response, not just the summary.
func FormatPlan(location, region string, plan planengine.Plan) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Processing request...\n")
	fmt.Fprintf(&b, "=== Energy Plan for %s/%s ===\n", location, region)
	fmt.Fprintf(&b, "Entries: %d\n", len(plan.Intervals))
	fmt.Fprintf(&b, "Total Cost: %.2f SEK\n", plan.TotalCostSEK)
	fmt.Fprintf(&b, "Grid Import: %.2f kWh\n", plan.TotalImport)
	fmt.Fprintf(&b, "Grid Export: %.2f kWh\n", plan.TotalExport)
	fmt.Fprintf(&b, "\n")
	fmt.Fprintf(&b, "First 10 hours:\n")

	n := len(plan.Intervals)
	if n > 10 {
		n = 10
	}
	for i := 0; i < n; i++ {
		iv := plan.Intervals[i]
		fmt.Fprintf(&b, "[%d] Production: %.2f kWh, Price: %.2f SEK/kWh, Action: %s\n", i, iv.ProductionKWh, iv.SpotPrice, iv.Action)
	}

	return b.String()
}
