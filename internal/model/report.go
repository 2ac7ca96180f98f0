package model

import "time"

// Report is the complete per-document output artifact
type Report struct {
	RunID       string    `json:"run_id"`
	Source      string    `json:"source"`       // Input path the pages were loaded from
	PageCount   int       `json:"page_count"`   // Number of pages processed
	GeneratedAt time.Time `json:"generated_at"` // When the run finished

	MissingForSeenIntext []int                    `json:"missing_footnotes_for_seen_intext"`
	FootnotesByPage      map[int]map[int]string   `json:"footnotes_by_page"`
	MissingInference     []ResolutionRecord       `json:"missing_inference"`
	RecoveredItems       map[int]string           `json:"recovered_items"`
	AllFootnoteItems     map[int]string           `json:"all_footnote_items"`
	CanonicalRepair      CanonicalRepairLog       `json:"canonical_repair"`
	StructuredReferences []StructuredReferenceRow `json:"structured_references"`
	Artifacts            []Artifact               `json:"artifacts"`
	ClaimExtraction      ClaimExtraction          `json:"claim_extraction"`
	SixC                 SixCFramework            `json:"sixc_framework"`
	SequenceChecks       SequenceChecks           `json:"sequence_checks"`
	Summary              Summary                  `json:"summary"`
	QualityGate          QualityGate              `json:"quality_gate"`
	Principles           Principles               `json:"principles"`
	Oracle               *OracleInfo              `json:"oracle,omitempty"`
	Footnotes            map[int]MergedFootnote   `json:"-"`
	Index                *PageIndex               `json:"-"`
}

// SixCFramework groups source credibility and per-claim corroboration
type SixCFramework struct {
	Credibility   CredibilityBlock   `json:"credibility"`
	Corroboration CorroborationBlock `json:"corroboration"`
}

// CredibilityBlock lists every deduplicated source with its classification
type CredibilityBlock struct {
	Sources []SourceRecord `json:"sources"`
}

// CorroborationBlock holds claim scores and the document aggregate
type CorroborationBlock struct {
	Claims   []CorroborationScore `json:"claims"`
	Document DocumentScore        `json:"document"`
}

// CorroborationScore is the transparent score of one claim
type CorroborationScore struct {
	ClaimID          string      `json:"claim_id"`
	Score            float64     `json:"score"`
	Components       Components  `json:"components"`
	SupportSources   []string    `json:"support_sources"`
	SupportFootnotes []int       `json:"support_footnotes"`
	StanceCounts     StanceCount `json:"stance_counts"`
	Formula          string      `json:"formula"`
}

// Components are the six factor values, each in [0, 1]
type Components struct {
	T float64 `json:"T"` // Traceability
	E float64 `json:"E"` // Evidentiary linkage
	I float64 `json:"I"` // Independence
	A float64 `json:"A"` // Agreement
	C float64 `json:"C"` // Credibility
	K float64 `json:"K"` // Penalty
}

// StanceCount tallies stance judgements over (claim, snippet) pairs
type StanceCount struct {
	Support    int `json:"support"`
	Contradict int `json:"contradict"`
	Unknown    int `json:"unknown"`
}

// Total returns the number of judged pairs
func (s StanceCount) Total() int {
	return s.Support + s.Contradict + s.Unknown
}

// DocumentScore aggregates claim scores for the whole document
type DocumentScore struct {
	Score    float64  `json:"score"`
	Median   float64  `json:"median"`
	Coverage float64  `json:"coverage"`
	Claims   int      `json:"claims"`
	Formula  string   `json:"formula"`
	Signals  []Signal `json:"signals"`
}

// Artifact is a table or figure caption found in the document
type Artifact struct {
	Kind         string `json:"kind"` // table, figure, exhibit
	Label        string `json:"label"`
	Caption      string `json:"caption"`
	PageIndex    int    `json:"page_index"`
	FootnoteRefs []int  `json:"footnote_refs"`
	Extractor    string `json:"extractor"`
}

// Summary carries the headline counts of a run
type Summary struct {
	Pages                int      `json:"pages"`
	FootnotesFound       int      `json:"footnotes_found"`
	IntextHits           int      `json:"intext_hits"`
	MissingForSeenIntext int      `json:"missing_for_seen_intext"`
	Resolved             int      `json:"resolved"`
	Unresolved           int      `json:"unresolved"`
	Repaired             int      `json:"repaired"`
	DroppedOutliers      int      `json:"dropped_outliers"`
	References           int      `json:"references"`
	Sources              int      `json:"sources"`
	Claims               int      `json:"claims"`
	SupportedClaims      int      `json:"supported_claims"`
	DocumentScore        float64  `json:"document_score"`
	SkippedStages        []string `json:"skipped_stages,omitempty"`
}

// QualityGate is the pass/fail verdict of a run
type QualityGate struct {
	Passed          bool     `json:"passed"`
	Reasons         []string `json:"reasons"`
	AvgConfidence   float64  `json:"avg_confidence"`
	UnresolvedCount int      `json:"unresolved_count"`
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`           // Signal classification
	Severity    SignalSeverity         `json:"severity"`       // info, warning, critical
	Description string                 `json:"description"`    // Human-readable description
	Data        map[string]interface{} `json:"data,omitempty"` // Transparent scoring data (formulas, inputs)
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalCoverage      SignalType = "coverage"      // Share of claims above the coverage threshold
	SignalContradiction SignalType = "contradiction" // Web results contradicting claims
	SignalCircularity   SignalType = "circularity"   // Sources concentrated on few domains or self-references
	SignalOverclaim     SignalType = "overclaim"     // Absolutist wording with thin sourcing
	SignalUnsupported   SignalType = "unsupported"   // Claims without support footnotes
	SignalUntraceable   SignalType = "untraceable"   // Footnotes without resolvable sources
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// Principles documents which core principles were applied
type Principles struct {
	NonNormative bool `json:"non_normative"` // Evaluates support, not truth
	Transparent  bool `json:"transparent"`   // All scoring explainable
	Symmetric    bool `json:"symmetric"`     // Same rules for all sources
}

// DefaultPrinciples returns the standard principles
func DefaultPrinciples() Principles {
	return Principles{
		NonNormative: true,
		Transparent:  true,
		Symmetric:    true,
	}
}

// OracleInfo records which oracle served the run and how it behaved
// It never affects scoring beyond the typed responses it returned
type OracleInfo struct {
	Provider string         `json:"provider"`
	Model    string         `json:"model,omitempty"`
	Calls    map[string]int `json:"calls,omitempty"`    // kind -> successful calls
	Failures map[string]int `json:"failures,omitempty"` // kind -> failed calls
}
