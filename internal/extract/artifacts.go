package extract

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/sixc/internal/model"
	"github.com/ppiankov/sixc/internal/oracle"
)

var captionRe = regexp.MustCompile(`^(?i:(table|figure|fig\.|exhibit|chart))\s+(\d{1,3}(?:\.\d{1,2})?[a-z]?|[IVX]{1,5})\b[.:\s–-]*(.*)$`)

// Caption is a caption line found on a page
type Caption struct {
	Kind  string
	Label string
	Line  string
}

// FindCaptions returns the caption lines of one page
func FindCaptions(page string) []Caption {
	var out []Caption
	for _, raw := range strings.Split(page, "\n") {
		line := strings.TrimSpace(raw)
		m := captionRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out = append(out, Caption{Kind: captionKind(m[1]), Label: m[1] + " " + m[2], Line: line})
	}
	return out
}

func captionKind(word string) string {
	switch strings.ToLower(word) {
	case "table":
		return "table"
	case "figure", "fig.", "chart":
		return "figure"
	case "exhibit":
		return "exhibit"
	}
	return "other"
}

// ArtifactExtractor lists the tables and figures of a document
type ArtifactExtractor struct {
	oracle oracle.Oracle
	logger *zap.Logger
}

// NewArtifactExtractor creates an extractor; a nil oracle records captions only
func NewArtifactExtractor(o oracle.Oracle, logger *zap.Logger) *ArtifactExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArtifactExtractor{oracle: o, logger: logger}
}

// ExtractPage returns the artifacts of one page; pages without caption lines are skipped
func (e *ArtifactExtractor) ExtractPage(ctx context.Context, pageIndex int, page string) []model.Artifact {
	captions := FindCaptions(page)
	if len(captions) == 0 {
		return nil
	}

	if e.oracle != nil {
		lines := make([]string, len(captions))
		for i, c := range captions {
			lines[i] = c.Line
		}
		resp, err := oracle.Call[*oracle.ExtractArtifactsResponse](ctx, e.oracle, &oracle.ExtractArtifactsRequest{
			PageIndex: pageIndex,
			Captions:  lines,
			PageText:  page,
		})
		if err == nil {
			if artifacts := groundArtifacts(resp.Artifacts, pageIndex, page); len(artifacts) > 0 {
				return artifacts
			}
		} else {
			e.logger.Warn("artifact oracle failed, recording captions",
				zap.Int("page", pageIndex), zap.Error(err))
		}
	}

	artifacts := make([]model.Artifact, 0, len(captions))
	for _, c := range captions {
		artifacts = append(artifacts, model.Artifact{
			Kind:         c.Kind,
			Label:        c.Label,
			Caption:      c.Line,
			PageIndex:    pageIndex,
			FootnoteRefs: model.SortedKeys(SectionMarkers(c.Line)),
			Extractor:    ExtractorDeterministic,
		})
	}
	return artifacts
}

// groundArtifacts drops artifacts whose caption is not on the page
func groundArtifacts(items []oracle.ArtifactItem, pageIndex int, page string) []model.Artifact {
	haystack := Normalize(page)
	var out []model.Artifact
	for _, item := range items {
		caption := strings.TrimSpace(item.Caption)
		if caption == "" || !strings.Contains(haystack, Normalize(caption)) {
			continue
		}
		refs := []int{}
		for _, n := range item.FootnoteRefs {
			if n > 0 {
				refs = append(refs, n)
			}
		}
		out = append(out, model.Artifact{
			Kind:         item.Kind,
			Label:        strings.TrimSpace(item.Label),
			Caption:      caption,
			PageIndex:    pageIndex,
			FootnoteRefs: refs,
			Extractor:    ExtractorOracle,
		})
	}
	return out
}
