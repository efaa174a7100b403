package analysis

// DimensionScore is one analyzed facial attribute.
type DimensionScore struct {
	Score    int    `json:"score"`    // 0..100
	Analysis string `json:"analysis"` // non-empty
}

// FaceAnalysis is the per-person reading. Field names are part of the wire contract.
type FaceAnalysis struct {
	Tianting       DimensionScore `json:"tianting"` // 天庭: forehead, career
	Mushen         DimensionScore `json:"mushen"`   // 目神: eyes, temperament
	Shoutang       DimensionScore `json:"shoutang"` // 寿堂: philtrum, health
	Quangu         DimensionScore `json:"quangu"`   // 颧骨: cheekbones, power
	Hanlu          DimensionScore `json:"hanlu"`    // 含露: mouth, emotion
	Caibo          DimensionScore `json:"caibo"`    // 财帛: nose, wealth
	OverallFortune string         `json:"overallFortune"`
}

type RelationshipAnalysis struct {
	MatchScore  int          `json:"matchScore"` // 2..99
	ScoreReason string       `json:"scoreReason"`
	Pros        []string     `json:"pros"`
	Cons        []string     `json:"cons"`
	Male        FaceAnalysis `json:"male"`
	Female      FaceAnalysis `json:"female"`
}

// Clone returns a deep copy so callers never share slices with the cache.
func (r RelationshipAnalysis) Clone() RelationshipAnalysis {
	out := r
	out.Pros = append([]string(nil), r.Pros...)
	out.Cons = append([]string(nil), r.Cons...)
	return out
}

const (
	MinMatchScore     = 2
	MaxMatchScore     = 99
	MinDimensionScore = 0
	MaxDimensionScore = 100
)

// Dimension describes one of the six fixed dimensions for renderers.
type Dimension struct {
	Key   string // wire name
	Name  string // 天庭
	Topic string // 事业
}

// Label is the display form used by the report views, e.g. "天庭 (事业)".
func (d Dimension) Label() string { return d.Name + " (" + d.Topic + ")" }

var dimensions = []Dimension{
	{Key: "tianting", Name: "天庭", Topic: "事业"},
	{Key: "mushen", Name: "目神", Topic: "心性"},
	{Key: "caibo", Name: "财帛", Topic: "财运"},
	{Key: "quangu", Name: "颧骨", Topic: "权力"},
	{Key: "hanlu", Name: "含露", Topic: "情感"},
	{Key: "shoutang", Name: "寿堂", Topic: "健康"},
}

// Dimensions returns the six dimensions in display order.
func Dimensions() []Dimension {
	return append([]Dimension(nil), dimensions...)
}

// Score returns the dimension value by wire key.
func (f FaceAnalysis) Score(key string) (DimensionScore, bool) {
	switch key {
	case "tianting":
		return f.Tianting, true
	case "mushen":
		return f.Mushen, true
	case "shoutang":
		return f.Shoutang, true
	case "quangu":
		return f.Quangu, true
	case "hanlu":
		return f.Hanlu, true
	case "caibo":
		return f.Caibo, true
	}
	return DimensionScore{}, false
}
