package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/dalebrubaker/sourcegraph-mcp/pkg/errors"
)

// Envelope is the raw JSON body returned by the search backend for one request
type Envelope []byte

// String returns the envelope indented for display, or verbatim when it is not valid JSON
func (e Envelope) String() string {
	var out bytes.Buffer
	if err := json.Indent(&out, e, "", "  "); err != nil {
		return string(e)
	}
	return out.String()
}

// OutcomeKind tags the variant of a SearchOutcome
type OutcomeKind string

const (
	OutcomeSuccess       OutcomeKind = "success"
	OutcomeTransport     OutcomeKind = "transport"      // backend unreachable, bad URL or token
	OutcomeProtocol      OutcomeKind = "protocol"       // GraphQL errors list
	OutcomeResponseShape OutcomeKind = "response_shape" // body does not match the search schema
)

// SearchOutcome is the classified result of one search request
type SearchOutcome struct {
	Kind OutcomeKind

	// Err is set for every non-success kind
	Err *apperrors.AppError

	// Raw holds the offending body for response shape failures
	Raw Envelope

	MatchCount int

	// Results holds the decoded entries, at most the inspect limit given to DecodeOutcome
	Results []SearchResultEntry
}

// Succeeded reports whether the search completed with a well-formed response
func (o SearchOutcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}

// FileMatches returns the file matches among the first limit entries. A
// limit <= 0 considers every entry.
func (o SearchOutcome) FileMatches(limit int) []FileMatch {
	entries := o.Results
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	matches := make([]FileMatch, 0, len(entries))
	for _, entry := range entries {
		if entry.IsFileMatch() {
			matches = append(matches, *entry.File)
		}
	}
	return matches
}

// TransportOutcome classifies an error returned by the search client
func TransportOutcome(err error) SearchOutcome {
	return SearchOutcome{
		Kind: OutcomeTransport,
		Err:  apperrors.NewTransportError("search request failed", err),
	}
}

type graphQLError struct {
	Message string `json:"message"`
}

type searchEnvelope struct {
	Data *struct {
		Search *struct {
			Results *struct {
				MatchCount *int               `json:"matchCount"`
				Results    *[]json.RawMessage `json:"results"`
			} `json:"results"`
		} `json:"search"`
	} `json:"data"`
}

type searchResultWire struct {
	Typename *string `json:"__typename"`
	File     *struct {
		Path       *string `json:"path"`
		Repository *struct {
			Name *string `json:"name"`
		} `json:"repository"`
	} `json:"file"`
	Symbols []symbolWire `json:"symbols"`
}

type symbolWire struct {
	Name     *string `json:"name"`
	Kind     string  `json:"kind"`
	Location *struct {
		Range *struct {
			Start *struct {
				Line *int `json:"line"`
			} `json:"start"`
		} `json:"range"`
	} `json:"location"`
}

// DecodeOutcome classifies a response envelope. A top-level "error" takes
// precedence over a GraphQL "errors" list, which takes precedence over data.
// Only the first inspect result entries are decoded and shape-checked; the
// rest are never shown. inspect <= 0 decodes every entry.
func DecodeOutcome(env Envelope, inspect int) SearchOutcome {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(env, &top); err != nil {
		return shapeOutcome(env, "response is not a JSON object", err)
	}

	if raw, ok := top["error"]; ok && !isJSONNull(raw) {
		return SearchOutcome{
			Kind: OutcomeTransport,
			Err:  apperrors.NewTransportError(rawString(raw), nil),
		}
	}

	if raw, ok := top["errors"]; ok && !isJSONNull(raw) {
		var gqlErrors []graphQLError
		if err := json.Unmarshal(raw, &gqlErrors); err != nil {
			return SearchOutcome{
				Kind: OutcomeProtocol,
				Err:  apperrors.NewProtocolError(fmt.Sprintf("malformed errors field: %s", string(raw))),
			}
		}
		if len(gqlErrors) > 0 {
			message := gqlErrors[0].Message
			if message == "" {
				message = "unknown GraphQL error"
			}
			return SearchOutcome{
				Kind: OutcomeProtocol,
				Err:  apperrors.NewProtocolError(message),
			}
		}
	}

	var decoded searchEnvelope
	if err := json.Unmarshal(env, &decoded); err != nil {
		return shapeOutcome(env, "unexpected field type", err)
	}

	switch {
	case decoded.Data == nil:
		return shapeOutcome(env, "missing key data", nil)
	case decoded.Data.Search == nil:
		return shapeOutcome(env, "missing key data.search", nil)
	case decoded.Data.Search.Results == nil:
		return shapeOutcome(env, "missing key data.search.results", nil)
	case decoded.Data.Search.Results.MatchCount == nil:
		return shapeOutcome(env, "missing key data.search.results.matchCount", nil)
	case decoded.Data.Search.Results.Results == nil:
		return shapeOutcome(env, "missing key data.search.results.results", nil)
	}

	results := decoded.Data.Search.Results
	if *results.MatchCount < 0 {
		return shapeOutcome(env, fmt.Sprintf("negative matchCount %d", *results.MatchCount), nil)
	}

	raws := *results.Results
	if inspect > 0 && len(raws) > inspect {
		raws = raws[:inspect]
	}

	entries := make([]SearchResultEntry, 0, len(raws))
	for i, raw := range raws {
		entry, err := decodeEntry(raw)
		if err != nil {
			return shapeOutcome(env, fmt.Sprintf("result %d: %s", i, err.Error()), nil)
		}
		entries = append(entries, entry)
	}

	return SearchOutcome{
		Kind:       OutcomeSuccess,
		MatchCount: *results.MatchCount,
		Results:    entries,
	}
}

func decodeEntry(raw json.RawMessage) (SearchResultEntry, error) {
	var entry SearchResultEntry
	if isJSONNull(raw) {
		return entry, fmt.Errorf("entry is null")
	}

	var w searchResultWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return entry, fmt.Errorf("unexpected field type: %w", err)
	}
	if w.Typename == nil || *w.Typename == "" {
		return entry, fmt.Errorf("missing key __typename")
	}

	entry.Typename = *w.Typename
	if entry.Typename != TypenameFileMatch {
		return entry, nil
	}

	switch {
	case w.File == nil:
		return entry, fmt.Errorf("missing key file")
	case w.File.Path == nil:
		return entry, fmt.Errorf("missing key file.path")
	case w.File.Repository == nil || w.File.Repository.Name == nil:
		return entry, fmt.Errorf("missing key file.repository.name")
	}

	match := &FileMatch{
		Repository: *w.File.Repository.Name,
		Path:       *w.File.Path,
	}
	for j, sym := range w.Symbols {
		if sym.Name == nil {
			return entry, fmt.Errorf("symbol %d: missing key name", j)
		}
		symbol := Symbol{Name: *sym.Name, Kind: sym.Kind}
		if loc := sym.Location; loc != nil && loc.Range != nil && loc.Range.Start != nil {
			symbol.Line = loc.Range.Start.Line
		}
		match.Symbols = append(match.Symbols, symbol)
	}
	entry.File = match
	return entry, nil
}

func shapeOutcome(env Envelope, message string, err error) SearchOutcome {
	return SearchOutcome{
		Kind: OutcomeResponseShape,
		Err:  apperrors.NewResponseShapeError(message, err),
		Raw:  env,
	}
}

func isJSONNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// rawString returns a JSON string value unquoted, or the raw text for other JSON values
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
