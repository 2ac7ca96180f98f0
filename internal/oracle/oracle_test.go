package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/sixc/internal/model"
)

func TestCall_NilOracle(t *testing.T) {
	_, err := Call[*SelectSupportResponse](context.Background(), nil, &SelectSupportRequest{})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}

func TestFunc_DecodesAndValidates(t *testing.T) {
	var seen Kind
	fake := Func(func(ctx context.Context, req Request) (json.RawMessage, error) {
		seen = req.Kind()
		return json.RawMessage(`{"footnotes":[4,7],"supported":true,"reasoning":"both cite the survey"}`), nil
	})

	resp, err := Call[*SelectSupportResponse](context.Background(), fake, &SelectSupportRequest{ClaimStatement: "x"})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if seen != KindSelectSupport {
		t.Errorf("Expected kind %s, got %s", KindSelectSupport, seen)
	}
	if !resp.Supported || len(resp.Footnotes) != 2 || resp.Footnotes[1] != 7 {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestFunc_WrongResponseType(t *testing.T) {
	fake := Func(func(ctx context.Context, req Request) (json.RawMessage, error) {
		return json.RawMessage(`{"valid":true,"corrected_text":"","reason":""}`), nil
	})

	_, err := Call[*ResolveFootnoteResponse](context.Background(), fake, &ValidateFootnoteRequest{})
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("Expected ErrMalformed, got %v", err)
	}
}

func TestFunc_ErrorIsWrapped(t *testing.T) {
	fake := Func(func(ctx context.Context, req Request) (json.RawMessage, error) {
		return nil, ErrUnavailable
	})

	_, err := fake.Call(context.Background(), &ClassifySourceRequest{})
	var oe *Error
	if !errors.As(err, &oe) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if oe.Kind != KindClassifySource || !errors.Is(err, ErrUnavailable) {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestResponseValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		raw     string
		wantErr bool
	}{
		{name: "resolve ok", req: &ResolveFootnoteRequest{}, raw: `{"found":true,"inferred_page_index":3,"footnote_text":"a","evidence":"b","confidence":0.7}`},
		{name: "resolve confidence range", req: &ResolveFootnoteRequest{}, raw: `{"found":true,"inferred_page_index":3,"confidence":1.5}`, wantErr: true},
		{name: "resolve negative page", req: &ResolveFootnoteRequest{}, raw: `{"found":true,"inferred_page_index":-1,"confidence":0.5}`, wantErr: true},
		{name: "artifact kind", req: &ExtractArtifactsRequest{}, raw: `{"artifacts":[{"kind":"chart","label":"","caption":"","footnote_refs":[]}]}`, wantErr: true},
		{name: "claims empty statement", req: &ExtractClaimsRequest{}, raw: `{"claims":[{"claim_statement":" "}]}`, wantErr: true},
		{name: "support non-positive", req: &SelectSupportRequest{}, raw: `{"footnotes":[0],"supported":true,"reasoning":""}`, wantErr: true},
		{name: "stance enum", req: &ClassifyStanceRequest{}, raw: `{"stance":"agree","evidence_span":"","confidence":0.5}`, wantErr: true},
		{name: "source type enum", req: &ClassifySourceRequest{}, raw: `{"source_type":"magazine","institution_class":"","is_self_reference":false,"confidence":0.5}`, wantErr: true},
		{name: "source ok", req: &ClassifySourceRequest{}, raw: `{"source_type":"government","institution_class":"ministry","is_self_reference":false,"confidence":0.8}`},
		{name: "not json", req: &ValidateFootnoteRequest{}, raw: `valid`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.req, json.RawMessage(tt.raw))
			if tt.wantErr && !errors.Is(err, ErrMalformed) {
				t.Errorf("Expected ErrMalformed, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestSchemasAreValidJSON(t *testing.T) {
	requests := []Request{
		&ResolveFootnoteRequest{},
		&ValidateFootnoteRequest{},
		&ExtractBibliographyRequest{},
		&ExtractArtifactsRequest{},
		&ExtractClaimsRequest{},
		&SelectSupportRequest{},
		&ClassifyStanceRequest{},
		&ClassifySourceRequest{},
	}

	for _, req := range requests {
		if !json.Valid(req.Schema()) {
			t.Errorf("%s: schema is not valid JSON", req.Kind())
		}
	}
}

func TestResolvePromptCarriesContext(t *testing.T) {
	req := &ResolveFootnoteRequest{
		Index:      12,
		Candidates: []model.CandidatePage{{PageIndex: 4, Score: 0.82, Reason: "in_range"}},
		Excerpts:   []PageExcerpt{{PageIndex: 4, Text: "12 Ministry of Finance, Annual Report 2019."}},
		PrevText:   "World Bank, 2018.",
	}
	prompt := req.Prompt()

	for _, want := range []string{"Footnote 12", "page_index 4", "Footnote 11 reads: World Bank, 2018.", "Ministry of Finance"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
}
