package score

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/sixc/internal/extract"
	"github.com/ppiankov/sixc/internal/model"
	"github.com/ppiankov/sixc/internal/oracle"
)

const (
	supportOverlap    = 3
	contradictOverlap = 2
)

// negationCues mark a snippet that disputes what it talks about
var negationCues = []string{
	" not ", " no evidence", " never ", "false", "denied", "denies", "refuted", "refutes",
	"debunked", "incorrect", "misleading", "disputed", "contrary to", "untrue", "myth",
}

// StanceClassifier judges whether a web snippet supports or contradicts a claim
type StanceClassifier struct {
	oracle    oracle.Oracle
	useOracle bool
	logger    *zap.Logger
}

// NewStanceClassifier creates a classifier; a nil oracle or useOracle=false means lexical only
func NewStanceClassifier(o oracle.Oracle, useOracle bool, logger *zap.Logger) *StanceClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StanceClassifier{oracle: o, useOracle: useOracle && o != nil, logger: logger}
}

// Classify returns the stance of result toward claim
// ok is false when the oracle's judgement cites text the snippet does not contain;
// such pairs are not counted.
func (s *StanceClassifier) Classify(ctx context.Context, claim string, result model.SearchResult) (model.Stance, bool) {
	if s.useOracle {
		resp, err := oracle.Call[*oracle.ClassifyStanceResponse](ctx, s.oracle, &oracle.ClassifyStanceRequest{
			Claim:   claim,
			Title:   result.Title,
			URL:     result.URL,
			Snippet: result.Snippet,
		})
		if err == nil {
			if resp.Stance != model.StanceUnknown && !spanGrounded(resp.EvidenceSpan, result.Snippet) {
				s.logger.Debug("stance evidence not in snippet", zap.String("url", result.URL))
				return model.StanceUnknown, false
			}
			return resp.Stance, true
		}
		s.logger.Warn("stance classification failed",
			zap.String("kind", string(oracle.KindClassifyStance)),
			zap.String("url", result.URL),
			zap.Error(err))
	}
	return LexicalStance(claim, result.Title+" "+result.Snippet), true
}

// LexicalStance classifies by content-token overlap and negation cues
func LexicalStance(claim, text string) model.Stance {
	overlap := extract.SharedTokens(claim, text)
	if overlap >= contradictOverlap && hasNegation(text) {
		return model.StanceContradict
	}
	if overlap >= supportOverlap {
		return model.StanceSupport
	}
	return model.StanceUnknown
}

func hasNegation(text string) bool {
	padded := " " + extract.Normalize(text) + " "
	for _, cue := range negationCues {
		if strings.Contains(padded, cue) {
			return true
		}
	}
	return false
}

// spanGrounded requires a non-empty evidence span copied from the snippet
func spanGrounded(span, snippet string) bool {
	span = extract.Normalize(span)
	return span != "" && strings.Contains(extract.Normalize(snippet), span)
}
