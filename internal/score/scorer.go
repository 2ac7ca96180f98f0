package score

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"

	"go.uber.org/zap"

	"github.com/ppiankov/sixc/internal/model"
	"github.com/ppiankov/sixc/internal/worker"
)

const (
	singleSourceIndependence = 0.2
	untracedWithFootnotes    = 0.25
	supportedAgreement       = 0.6
	unsupportedAgreement     = 0.35
	overclaimMaxSources      = 1
)

// overclaimRe matches absolutist wording
var overclaimRe = regexp.MustCompile(`(?i)\b(prov(?:ed|es|en)|definitive(?:ly)?|conclusive(?:ly)?|undeniabl[ey]|irrefutabl[ey]|unquestionabl[ey]|indisputabl[ey]|beyond (?:any )?doubt|without (?:a )?doubt|always|never)\b`)

// Scorer calculates per-claim corroboration scores and the document aggregate
type Scorer struct {
	config  model.ScoringConfig
	stance  *StanceClassifier
	workers int
	logger  *zap.Logger
}

// NewScorer creates a new scorer; a nil stance classifier means lexical stance only
func NewScorer(config model.ScoringConfig, stance *StanceClassifier, workers int, logger *zap.Logger) *Scorer {
	if stance == nil {
		stance = NewStanceClassifier(nil, false, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{config: config, stance: stance, workers: workers, logger: logger}
}

// claimStats carries what the signals need beyond the score itself
type claimStats struct {
	scored      bool
	score       model.CorroborationScore
	circularity float64
	overclaim   bool
}

// Calculate scores every claim against its linked sources and aggregates the document
func (s *Scorer) Calculate(ctx context.Context, claims []model.Claim, sources *SourceIndex) model.CorroborationBlock {
	stats := worker.Map(ctx, s.workers, claims, func(ctx context.Context, _ int, claim model.Claim) claimStats {
		return s.scoreClaim(ctx, claim, sources)
	})

	block := model.CorroborationBlock{Claims: make([]model.CorroborationScore, 0, len(claims))}
	for i := range stats {
		if !stats[i].scored {
			// not reached before cancellation: score without sources
			stats[i] = s.scoreClaim(ctx, claims[i], &SourceIndex{})
		}
		block.Claims = append(block.Claims, stats[i].score)
	}

	block.Document = s.calculateDocument(block.Claims)
	block.Document.Signals = s.signals(claims, stats, sources)
	return block
}

// scoreClaim computes T, E, I, A, C and K for one claim
func (s *Scorer) scoreClaim(ctx context.Context, claim model.Claim, sources *SourceIndex) claimStats {
	linked := sources.Linked(claim.Support.Footnotes)
	w := s.config.Weights

	st := claimStats{scored: true}
	c := model.Components{
		T: traceability(linked, len(claim.Support.Footnotes)),
		E: linkage(claim),
		I: independence(linked),
	}

	counts := s.stanceCounts(ctx, claim, linked)
	c.A = agreement(counts, claim.Supported)
	c.C = s.credibility(linked)

	contradictionRate := 0.0
	if counts.Total() > 0 {
		contradictionRate = float64(counts.Contradict) / float64(counts.Total())
	}
	st.circularity = circularity(linked, c.I)
	st.overclaim = overclaimRe.MatchString(claim.ClaimStatement+" "+claim.DirectQuote) && len(linked) <= overclaimMaxSources
	overclaim := 0.0
	if st.overclaim {
		overclaim = 1
	}
	c.K = model.Clamp01(0.45*contradictionRate + 0.4*st.circularity + 0.15*overclaim)

	c.T, c.E, c.I, c.A, c.C = model.Clamp01(c.T), model.Clamp01(c.E), model.Clamp01(c.I), model.Clamp01(c.A), model.Clamp01(c.C)
	total := w.T*c.T + w.E*c.E + w.I*c.I + w.A*c.A + w.C*c.C - w.K*c.K

	ids := make([]string, 0, len(linked))
	for _, src := range linked {
		ids = append(ids, src.SourceID)
	}
	footnotes := append([]int{}, claim.Support.Footnotes...)
	sort.Ints(footnotes)

	st.score = model.CorroborationScore{
		ClaimID:          claim.ClaimID,
		Score:            model.Clamp01(total),
		Components:       c,
		SupportSources:   ids,
		SupportFootnotes: footnotes,
		StanceCounts:     counts,
		Formula: fmt.Sprintf("clamp(%.2f*T + %.2f*E + %.2f*I + %.2f*A + %.2f*C - %.2f*K)",
			w.T, w.E, w.I, w.A, w.C, w.K),
	}
	return st
}

// traceability is the share of linked sources with a resolvable identity
func traceability(linked []model.SourceRecord, footnotes int) float64 {
	if len(linked) == 0 {
		if footnotes > 0 {
			return untracedWithFootnotes
		}
		return 0
	}
	n := 0
	for _, src := range linked {
		if Traceable(src) {
			n++
		}
	}
	return float64(n) / float64(len(linked))
}

// linkage scores how firmly the claim is tied to its footnotes
func linkage(claim model.Claim) float64 {
	e := 0.5 * math.Min(1, float64(len(claim.Support.Footnotes))/3)
	if claim.DirectQuote != "" {
		e += 0.25
	}
	if claim.Support.Reasoning != "" {
		e += 0.25
	}
	return e
}

// independence is the normalized Shannon entropy of the linked sources' domains
func independence(linked []model.SourceRecord) float64 {
	switch len(linked) {
	case 0:
		return 0
	case 1:
		return singleSourceIndependence
	}

	counts := make(map[string]int)
	for _, src := range linked {
		label := src.Domain
		if label == "" {
			label = src.SourceID
		}
		counts[label]++
	}

	n := float64(len(linked))
	entropy := 0.0
	for _, c := range counts {
		p := float64(c) / n
		entropy -= p * math.Log(p)
	}
	return entropy / math.Log(n)
}

// circularity penalizes domain concentration and self-references
func circularity(linked []model.SourceRecord, independence float64) float64 {
	if len(linked) == 0 {
		return 0
	}
	self := 0
	for _, src := range linked {
		if src.Classification.IsSelfReference {
			self++
		}
	}
	penalty := float64(self) / float64(len(linked))
	if len(linked) >= 2 {
		penalty = math.Max(penalty, 1-independence)
	}
	return penalty
}

// agreement folds stance counts into [0, 1]; with no pairs it falls back on the extractor's verdict
func agreement(counts model.StanceCount, supported bool) float64 {
	total := counts.Total()
	if total == 0 {
		if supported {
			return supportedAgreement
		}
		return unsupportedAgreement
	}
	return float64(counts.Support-counts.Contradict+total) / float64(2*total)
}

func (s *Scorer) credibility(linked []model.SourceRecord) float64 {
	if len(linked) == 0 {
		return s.config.DefaultCredibility
	}
	sum := 0.0
	for _, src := range linked {
		sum += src.Classification.Confidence
	}
	return sum / float64(len(linked))
}

// stanceCounts judges the claim against the top results of every linked source
func (s *Scorer) stanceCounts(ctx context.Context, claim model.Claim, linked []model.SourceRecord) model.StanceCount {
	text := claim.ClaimStatement
	if claim.DirectQuote != "" {
		text += " " + claim.DirectQuote
	}

	var counts model.StanceCount
	for _, src := range linked {
		results := src.SearchResults
		if n := s.config.ResultsPerSource; n > 0 && len(results) > n {
			results = results[:n]
		}
		for _, res := range results {
			stance, ok := s.stance.Classify(ctx, text, res)
			if !ok {
				continue
			}
			switch stance {
			case model.StanceSupport:
				counts.Support++
			case model.StanceContradict:
				counts.Contradict++
			default:
				counts.Unknown++
			}
		}
	}
	return counts
}

// calculateDocument aggregates claim scores: median * (0.5 + 0.5*coverage)
func (s *Scorer) calculateDocument(scores []model.CorroborationScore) model.DocumentScore {
	doc := model.DocumentScore{
		Claims:  len(scores),
		Formula: fmt.Sprintf("median(claim_scores) * (0.5 + 0.5 * coverage), coverage = share of claims >= %.2f", s.config.CoverageThreshold),
		Signals: []model.Signal{},
	}
	if len(scores) == 0 {
		return doc
	}

	values := make([]float64, len(scores))
	covered := 0
	for i, sc := range scores {
		values[i] = sc.Score
		if sc.Score >= s.config.CoverageThreshold {
			covered++
		}
	}

	doc.Median = median(values)
	doc.Coverage = float64(covered) / float64(len(scores))
	doc.Score = DocumentScore(doc.Median, doc.Coverage)
	return doc
}

// DocumentScore combines the median claim score with coverage
func DocumentScore(median, coverage float64) float64 {
	return model.Clamp01(median * (0.5 + 0.5*coverage))
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// signals generates the diagnostic signals of the document score
func (s *Scorer) signals(claims []model.Claim, stats []claimStats, sources *SourceIndex) []model.Signal {
	signals := []model.Signal{s.coverageSignal(stats)}

	var contradict, pairs, overclaims, unsupported, circular int
	for i, st := range stats {
		contradict += st.score.StanceCounts.Contradict
		pairs += st.score.StanceCounts.Total()
		if st.overclaim {
			overclaims++
		}
		if st.circularity >= 0.5 {
			circular++
		}
		if len(claims[i].Support.Footnotes) == 0 {
			unsupported++
		}
	}

	if contradict > 0 {
		severity := model.SeverityWarning
		if float64(contradict)/float64(pairs) >= 0.5 {
			severity = model.SeverityCritical
		}
		signals = append(signals, model.Signal{
			Type:        model.SignalContradiction,
			Severity:    severity,
			Description: fmt.Sprintf("%d of %d web results contradict their claims", contradict, pairs),
			Data: map[string]interface{}{
				"contradict": contradict,
				"pairs":      pairs,
				"formula":    "contradict / (support + contradict + unknown)",
			},
		})
	}

	if circular > 0 {
		signals = append(signals, model.Signal{
			Type:        model.SignalCircularity,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("%d claims rest on concentrated or self-referencing sources", circular),
			Data: map[string]interface{}{
				"claims":    circular,
				"threshold": 0.5,
				"formula":   "max(1 - I when sources >= 2, self_reference_share)",
			},
		})
	}

	if overclaims > 0 {
		signals = append(signals, model.Signal{
			Type:        model.SignalOverclaim,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("%d claims use absolutist wording with at most one source", overclaims),
			Data: map[string]interface{}{
				"claims":      overclaims,
				"max_sources": overclaimMaxSources,
			},
		})
	}

	if unsupported > 0 {
		severity := model.SeverityInfo
		if unsupported*2 > len(claims) {
			severity = model.SeverityCritical
		} else if unsupported*4 > len(claims) {
			severity = model.SeverityWarning
		}
		signals = append(signals, model.Signal{
			Type:        model.SignalUnsupported,
			Severity:    severity,
			Description: fmt.Sprintf("%d of %d claims have no support footnotes", unsupported, len(claims)),
			Data: map[string]interface{}{
				"unsupported": unsupported,
				"claims":      len(claims),
			},
		})
	}

	untraceable := 0
	for _, src := range sources.Sources {
		if !Traceable(src) {
			untraceable++
		}
	}
	if untraceable > 0 {
		signals = append(signals, model.Signal{
			Type:        model.SignalUntraceable,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("%d of %d sources lack a publisher or author with a title, URL or venue", untraceable, len(sources.Sources)),
			Data: map[string]interface{}{
				"untraceable": untraceable,
				"sources":     len(sources.Sources),
			},
		})
	}

	return signals
}

// coverageSignal reports the share of claims above the coverage threshold
func (s *Scorer) coverageSignal(stats []claimStats) model.Signal {
	if len(stats) == 0 {
		return model.Signal{
			Type:        model.SignalCoverage,
			Severity:    model.SeverityCritical,
			Description: "No claims extracted",
			Data:        map[string]interface{}{"claims": 0},
		}
	}

	covered := 0
	for _, st := range stats {
		if st.score.Score >= s.config.CoverageThreshold {
			covered++
		}
	}
	ratio := float64(covered) / float64(len(stats))

	severity := model.SeverityInfo
	if ratio < 0.25 {
		severity = model.SeverityCritical
	} else if ratio < 0.5 {
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:        model.SignalCoverage,
		Severity:    severity,
		Description: fmt.Sprintf("Corroborated claims: %d/%d (%.0f%%)", covered, len(stats), ratio*100),
		Data: map[string]interface{}{
			"covered":   covered,
			"claims":    len(stats),
			"ratio":     ratio,
			"threshold": s.config.CoverageThreshold,
			"formula":   "count(score >= threshold) / claims",
		},
	}
}
