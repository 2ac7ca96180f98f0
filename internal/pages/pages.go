// Package pages loads pre-extracted page text from disk
package pages

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/sixc/internal/model"
)

// ErrNoPages is returned when an input yields no page text at all
var ErrNoPages = errors.New("no pages in input")

// Document is a loaded input: ordered page texts plus an optional citation object
type Document struct {
	Path      string
	Pages     model.Pages
	Citations *model.CitationInput
}

// Load reads path as a directory of .txt pages, a JSON file, a PDF or a form-feed separated text file
func Load(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}

	var doc *Document
	switch {
	case info.IsDir():
		doc, err = LoadDir(path)
	case strings.EqualFold(filepath.Ext(path), ".json"):
		doc, err = LoadJSON(path)
	case strings.EqualFold(filepath.Ext(path), ".pdf"):
		doc, err = LoadPDF(path)
	default:
		doc, err = LoadText(path)
	}
	if err != nil {
		return nil, err
	}

	if !hasText(doc.Pages) {
		return nil, fmt.Errorf("%s: %w", path, ErrNoPages)
	}
	return doc, nil
}

// LoadDir reads every *.txt file in dir as one page, in natural name order
func LoadDir(dir string) (*Document, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	sort.Slice(matches, func(i, j int) bool {
		return naturalLess(filepath.Base(matches[i]), filepath.Base(matches[j]))
	})

	pages := make(model.Pages, 0, len(matches))
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("read page %s: %w", m, err)
		}
		pages = append(pages, normalizeNewlines(string(data)))
	}

	return &Document{Path: dir, Pages: pages}, nil
}

// LoadText reads a single text file and splits it into pages on form feeds
func LoadText(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	text := normalizeNewlines(string(data))
	parts := strings.Split(text, "\f")
	// A trailing form feed does not start another page
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}

	return &Document{Path: path, Pages: model.Pages(parts)}, nil
}

type jsonInput struct {
	Pages     []string             `json:"pages"`
	Citations *model.CitationInput `json:"citations"`
}

// LoadJSON reads either a bare array of page strings or an object with pages and citations
func LoadJSON(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return ParseJSON(path, data)
}

// ParseJSON decodes the JSON input forms accepted by LoadJSON
func ParseJSON(path string, data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoPages)
	}

	doc := &Document{Path: path}
	if trimmed[0] == '[' {
		var pages []string
		if err := json.Unmarshal(trimmed, &pages); err != nil {
			return nil, fmt.Errorf("decode pages: %w", err)
		}
		doc.Pages = pages
		return doc, nil
	}

	var in jsonInput
	if err := json.Unmarshal(trimmed, &in); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	doc.Pages = in.Pages
	doc.Citations = in.Citations
	return doc, nil
}

func hasText(pages model.Pages) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// naturalLess orders "page2.txt" before "page10.txt"
func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		da, ra := leadingDigits(a)
		db, rb := leadingDigits(b)
		if da != "" && db != "" {
			na := strings.TrimLeft(da, "0")
			nb := strings.TrimLeft(db, "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			a, b = ra, rb
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func leadingDigits(s string) (string, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i], s[i:]
}
