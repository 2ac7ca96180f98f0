package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind names one oracle call site
type Kind string

const (
	KindResolveFootnote     Kind = "resolve_missing_footnote"
	KindValidateFootnote    Kind = "validate_footnote"
	KindExtractBibliography Kind = "extract_bibliography"
	KindExtractArtifacts    Kind = "extract_artifacts"
	KindExtractClaims       Kind = "extract_claims"
	KindSelectSupport       Kind = "select_support"
	KindClassifyStance      Kind = "classify_stance"
	KindClassifySource      Kind = "classify_source"
)

// Request is one typed oracle request
type Request interface {
	// Kind identifies the call site
	Kind() Kind

	// Prompt renders the structured prompt sent to the backend
	Prompt() string

	// Schema is the JSON schema the response must satisfy
	Schema() json.RawMessage

	// NewResponse returns an empty decode target of the matching response type
	NewResponse() Response
}

// Response is one typed oracle response
type Response interface {
	// Validate rejects decoded values the schema cannot express (ranges, enums)
	Validate() error
}

// Oracle resolves typed requests
//
// Every failure is an *Error; callers degrade to their deterministic fallback.
type Oracle interface {
	Call(ctx context.Context, req Request) (Response, error)
}

var (
	ErrUnavailable = errors.New("oracle unavailable")
	ErrMalformed   = errors.New("malformed oracle response")
	ErrTimeout     = errors.New("oracle call timed out")
	ErrCircuitOpen = errors.New("oracle circuit open")
)

// Error wraps a failed oracle call with its kind
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("oracle %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Call issues req and returns the response as its concrete type
// A nil oracle fails with ErrUnavailable.
func Call[T Response](ctx context.Context, o Oracle, req Request) (T, error) {
	var zero T
	if o == nil {
		return zero, &Error{Kind: req.Kind(), Err: ErrUnavailable}
	}

	resp, err := o.Call(ctx, req)
	if err != nil {
		var oe *Error
		if errors.As(err, &oe) {
			return zero, err
		}
		return zero, &Error{Kind: req.Kind(), Err: err}
	}

	typed, ok := resp.(T)
	if !ok {
		return zero, &Error{Kind: req.Kind(), Err: fmt.Errorf("%w: unexpected response type %T", ErrMalformed, resp)}
	}
	return typed, nil
}

// Decode parses raw backend output into the response type of req and validates it
func Decode(req Request, raw json.RawMessage) (Response, error) {
	resp := req.NewResponse()
	if err := json.Unmarshal(raw, resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return resp, nil
}

// Func adapts a function returning raw JSON into an Oracle
// Responses go through Decode, so fakes exercise the same validation as backends.
type Func func(ctx context.Context, req Request) (json.RawMessage, error)

// Call implements Oracle
func (f Func) Call(ctx context.Context, req Request) (Response, error) {
	raw, err := f(ctx, req)
	if err != nil {
		return nil, &Error{Kind: req.Kind(), Err: err}
	}
	resp, err := Decode(req, raw)
	if err != nil {
		return nil, &Error{Kind: req.Kind(), Err: err}
	}
	return resp, nil
}
