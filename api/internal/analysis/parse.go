package analysis

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
)

// wire shapes keep pointers so a missing field is distinguishable from a zero value.
type wireDimension struct {
	Score    json.RawMessage `json:"score"`
	Analysis *string         `json:"analysis"`
}

type wireFace struct {
	Tianting       *wireDimension `json:"tianting"`
	Mushen         *wireDimension `json:"mushen"`
	Shoutang       *wireDimension `json:"shoutang"`
	Quangu         *wireDimension `json:"quangu"`
	Hanlu          *wireDimension `json:"hanlu"`
	Caibo          *wireDimension `json:"caibo"`
	OverallFortune *string        `json:"overallFortune"`
}

type wireAnalysis struct {
	MatchScore  json.RawMessage `json:"matchScore"`
	ScoreReason *string         `json:"scoreReason"`
	Pros        []*string       `json:"pros"`
	Cons        []*string       `json:"cons"`
	Male        *wireFace       `json:"male"`
	Female      *wireFace       `json:"female"`
}

// Parse decodes raw model output and validates it against the response schema.
// Unknown fields are ignored. Out-of-range values fail; nothing is clamped.
func Parse(raw string) (*RelationshipAnalysis, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, NewError(KindMalformedResponse, "parse", "empty document")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var w wireAnalysis
	if err := dec.Decode(&w); err != nil {
		return nil, NewError(KindMalformedResponse, "parse", "bad JSON: %w", err)
	}
	if dec.More() {
		return nil, NewError(KindMalformedResponse, "parse", "trailing data after JSON document")
	}

	var out RelationshipAnalysis
	var err error
	if out.MatchScore, err = intInRange("matchScore", w.MatchScore, MinMatchScore, MaxMatchScore); err != nil {
		return nil, err
	}
	if w.ScoreReason == nil {
		return nil, missing("scoreReason")
	}
	out.ScoreReason = *w.ScoreReason
	if out.Pros, err = items("pros", w.Pros); err != nil {
		return nil, err
	}
	if out.Cons, err = items("cons", w.Cons); err != nil {
		return nil, err
	}

	if out.Male, err = face("male", w.Male); err != nil {
		return nil, err
	}
	if out.Female, err = face("female", w.Female); err != nil {
		return nil, err
	}
	return &out, nil
}

func face(path string, w *wireFace) (FaceAnalysis, error) {
	if w == nil {
		return FaceAnalysis{}, missing(path)
	}
	var f FaceAnalysis
	fields := []struct {
		name string
		in   *wireDimension
		out  *DimensionScore
	}{
		{"tianting", w.Tianting, &f.Tianting},
		{"mushen", w.Mushen, &f.Mushen},
		{"shoutang", w.Shoutang, &f.Shoutang},
		{"quangu", w.Quangu, &f.Quangu},
		{"hanlu", w.Hanlu, &f.Hanlu},
		{"caibo", w.Caibo, &f.Caibo},
	}
	for _, fd := range fields {
		d, err := dimension(path+"."+fd.name, fd.in)
		if err != nil {
			return FaceAnalysis{}, err
		}
		*fd.out = d
	}
	if w.OverallFortune != nil {
		f.OverallFortune = *w.OverallFortune
	}
	return f, nil
}

func dimension(path string, w *wireDimension) (DimensionScore, error) {
	if w == nil {
		return DimensionScore{}, missing(path)
	}
	score, err := intInRange(path+".score", w.Score, MinDimensionScore, MaxDimensionScore)
	if err != nil {
		return DimensionScore{}, err
	}
	if w.Analysis == nil || strings.TrimSpace(*w.Analysis) == "" {
		return DimensionScore{}, missing(path + ".analysis")
	}
	return DimensionScore{Score: score, Analysis: *w.Analysis}, nil
}

// items rejects an empty list and any null or blank entry.
func items(path string, in []*string) ([]string, error) {
	if len(in) == 0 {
		return nil, NewError(KindMalformedResponse, "parse", "%s: at least one item required", path)
	}
	out := make([]string, len(in))
	for i, it := range in {
		if it == nil || strings.TrimSpace(*it) == "" {
			return nil, NewError(KindMalformedResponse, "parse", "%s[%d]: item is empty", path, i)
		}
		out[i] = *it
	}
	return out, nil
}

func intInRange(path string, raw json.RawMessage, lo, hi int) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, missing(path)
	}
	if raw[0] == '"' {
		return 0, NewError(KindMalformedResponse, "parse", "%s: %s is not a number", path, raw)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, NewError(KindMalformedResponse, "parse", "%s: %s is not a number", path, raw)
	}
	v, err := n.Int64()
	if err != nil {
		// 82.0 is still an integer; 82.5 is not.
		f, ferr := n.Float64()
		if ferr != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0, NewError(KindMalformedResponse, "parse", "%s: %q is not an integer", path, n.String())
		}
		if f < float64(lo) || f > float64(hi) {
			return 0, outOfRange(path, n.String(), lo, hi)
		}
		v = int64(f)
	}
	if v < int64(lo) || v > int64(hi) {
		return 0, outOfRange(path, n.String(), lo, hi)
	}
	return int(v), nil
}

func missing(path string) error {
	return NewError(KindMalformedResponse, "parse", "%s: required field is missing", path)
}

func outOfRange(path, got string, lo, hi int) error {
	return NewError(KindMalformedResponse, "parse", "%s: %s out of range [%d,%d]", path, got, lo, hi)
}
