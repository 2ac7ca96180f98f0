package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/ppiankov/sixc/internal/model"
)

// Renderer writes reports as JSON, Markdown and a colored terminal summary
type Renderer struct {
	includeFooter bool
	colors        map[string]*color.Color
}

// NewRenderer creates a new renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{
		includeFooter: includeFooter,
		colors: map[string]*color.Color{
			"title":  color.New(color.FgWhite, color.Bold),
			"label":  color.New(color.FgCyan),
			"green":  color.New(color.FgGreen),
			"yellow": color.New(color.FgYellow),
			"red":    color.New(color.FgRed, color.Bold),
		},
	}
}

// RenderJSON writes the report artifact to path
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes a human-readable summary of the report to path
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

// Markdown renders the report summary as Markdown
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder
	s := report.Summary

	fmt.Fprintf(&b, "# Footnote & corroboration report\n\n")
	fmt.Fprintf(&b, "- Source: `%s`\n", report.Source)
	fmt.Fprintf(&b, "- Run: `%s`\n", report.RunID)
	fmt.Fprintf(&b, "- Generated: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))

	fmt.Fprintf(&b, "## Quality gate: %s\n\n", passFail(report.QualityGate.Passed))
	fmt.Fprintf(&b, "- Average reference confidence: %.2f\n", report.QualityGate.AvgConfidence)
	fmt.Fprintf(&b, "- Unresolved footnotes: %d\n", report.QualityGate.UnresolvedCount)
	for _, reason := range report.QualityGate.Reasons {
		fmt.Fprintf(&b, "- Reason: %s\n", reason)
	}
	b.WriteString("\n")

	b.WriteString("## Footnotes\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Pages | %d |\n", s.Pages)
	fmt.Fprintf(&b, "| Footnotes | %d |\n", s.FootnotesFound)
	fmt.Fprintf(&b, "| In-text hits | %d |\n", s.IntextHits)
	fmt.Fprintf(&b, "| Missing for seen in-text | %d |\n", s.MissingForSeenIntext)
	fmt.Fprintf(&b, "| Resolved | %d |\n", s.Resolved)
	fmt.Fprintf(&b, "| Repaired (canonical) | %d |\n", s.Repaired)
	fmt.Fprintf(&b, "| Dropped outliers | %d |\n", s.DroppedOutliers)
	fmt.Fprintf(&b, "| Canonical max | %d |\n", report.CanonicalRepair.CanonicalMax)
	if gaps := report.SequenceChecks.Gaps; len(gaps) > 0 {
		fmt.Fprintf(&b, "| Gaps | %s |\n", joinInts(gaps))
	}
	b.WriteString("\n")

	if len(s.SkippedStages) > 0 {
		fmt.Fprintf(&b, "Skipped stages: %s\n\n", strings.Join(s.SkippedStages, ", "))
		r.footer(&b)
		return b.String()
	}

	doc := report.SixC.Corroboration.Document
	b.WriteString("## Corroboration\n\n")
	fmt.Fprintf(&b, "- Document score: **%.2f** (median %.2f, coverage %.0f%%)\n", doc.Score, doc.Median, doc.Coverage*100)
	fmt.Fprintf(&b, "- Formula: `%s`\n", doc.Formula)
	fmt.Fprintf(&b, "- Claims: %d (%d supported), sources: %d, references: %d\n\n", s.Claims, s.SupportedClaims, s.Sources, s.References)

	if len(doc.Signals) > 0 {
		b.WriteString("### Signals\n\n")
		for _, sig := range doc.Signals {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", sig.Type, sig.Severity, sig.Description)
		}
		b.WriteString("\n")
	}

	if len(report.SixC.Corroboration.Claims) > 0 {
		statements := make(map[string]string, len(report.ClaimExtraction.Claims))
		for _, c := range report.ClaimExtraction.Claims {
			statements[c.ClaimID] = c.ClaimStatement
		}
		b.WriteString("### Claims\n\n")
		b.WriteString("| Score | T | E | I | A | C | K | Footnotes | Claim |\n|---|---|---|---|---|---|---|---|---|\n")
		for _, sc := range report.SixC.Corroboration.Claims {
			c := sc.Components
			fmt.Fprintf(&b, "| %.2f | %.2f | %.2f | %.2f | %.2f | %.2f | %.2f | %s | %s |\n",
				sc.Score, c.T, c.E, c.I, c.A, c.C, c.K, joinInts(sc.SupportFootnotes), escapeCell(statements[sc.ClaimID]))
		}
		b.WriteString("\n")
	}

	r.footer(&b)
	return b.String()
}

func (r *Renderer) footer(b *strings.Builder) {
	if !r.includeFooter {
		return
	}
	b.WriteString("---\n\n")
	b.WriteString("_Scores measure how well cited evidence supports each claim. They do not establish whether a claim is true._\n")
}

// RenderSummary prints the colored run summary
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	s := report.Summary
	gate := report.QualityGate

	fmt.Fprintln(w)
	r.colors["title"].Fprintf(w, "%s\n", report.Source)
	r.line(w, "Pages", fmt.Sprintf("%d", s.Pages))
	r.line(w, "Footnotes", fmt.Sprintf("%d (%d in-text hits)", s.FootnotesFound, s.IntextHits))
	r.line(w, "Missing", fmt.Sprintf("%d seen in text, %d resolved, %d repaired", s.MissingForSeenIntext, s.Resolved, s.Repaired))
	r.line(w, "References", fmt.Sprintf("%d rows, avg confidence %.2f", s.References, gate.AvgConfidence))

	if len(s.SkippedStages) > 0 {
		r.line(w, "Skipped", strings.Join(s.SkippedStages, ", "))
	} else {
		r.line(w, "Claims", fmt.Sprintf("%d (%d supported), %d sources", s.Claims, s.SupportedClaims, s.Sources))
		r.label(w, "Score")
		r.scoreColor(s.DocumentScore).Fprintf(w, "%.2f\n", s.DocumentScore)
	}

	r.label(w, "Gate")
	if gate.Passed {
		r.colors["green"].Fprintln(w, "passed")
	} else {
		r.colors["red"].Fprintln(w, "failed")
		for _, reason := range gate.Reasons {
			r.colors["yellow"].Fprintf(w, "  - %s\n", reason)
		}
	}
	fmt.Fprintln(w)
}

func (r *Renderer) label(w io.Writer, name string) {
	r.colors["label"].Fprintf(w, "  %-11s ", name+":")
}

func (r *Renderer) line(w io.Writer, name, value string) {
	r.label(w, name)
	fmt.Fprintln(w, value)
}

func (r *Renderer) scoreColor(score float64) *color.Color {
	switch {
	case score >= 0.6:
		return r.colors["green"]
	case score >= 0.35:
		return r.colors["yellow"]
	default:
		return r.colors["red"]
	}
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func passFail(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}
