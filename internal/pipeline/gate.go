package pipeline

import (
	"fmt"
	"strings"

	"github.com/ppiankov/sixc/internal/model"
)

// GateError reports a run whose quality gate failed
// The report is still complete; callers map this error to a distinct exit code.
type GateError struct {
	Source  string
	Reasons []string
}

func (e *GateError) Error() string {
	return fmt.Sprintf("quality gate failed for %s: %s", e.Source, strings.Join(e.Reasons, "; "))
}

// CheckGate returns a *GateError when the report's gate failed
func CheckGate(report *model.Report) error {
	if report == nil || report.QualityGate.Passed {
		return nil
	}
	return &GateError{Source: report.Source, Reasons: report.QualityGate.Reasons}
}

// EvaluateGate applies the quality thresholds to the structured references
// avg_confidence is the mean row confidence (0 with no rows); unresolved counts
// indices seen in the text that are still absent after canonical repair.
func EvaluateGate(cfg model.GateConfig, rows []model.StructuredReferenceRow, missing []int, footnotes map[int]model.MergedFootnote) model.QualityGate {
	gate := model.QualityGate{Reasons: []string{}}

	if len(rows) > 0 {
		sum := 0.0
		for _, r := range rows {
			sum += r.Confidence
		}
		gate.AvgConfidence = sum / float64(len(rows))
	}
	for _, idx := range missing {
		if _, ok := footnotes[idx]; !ok {
			gate.UnresolvedCount++
		}
	}

	if gate.AvgConfidence < cfg.MinAvgConfidence {
		gate.Reasons = append(gate.Reasons, fmt.Sprintf("avg_confidence %.2f below %.2f", gate.AvgConfidence, cfg.MinAvgConfidence))
	}
	if gate.UnresolvedCount > cfg.MaxUnresolved {
		gate.Reasons = append(gate.Reasons, fmt.Sprintf("unresolved_count %d exceeds %d", gate.UnresolvedCount, cfg.MaxUnresolved))
	}
	gate.Passed = len(gate.Reasons) == 0
	return gate
}
