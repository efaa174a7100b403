package telegram

import (
	"fmt"
	"strings"

	"face-match/api/internal/analysis"
)

const maxMessageRunes = 3900

// FormatReport renders an analysis as a plain-text chat message.
func FormatReport(res *analysis.RelationshipAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💞 缘分契合度：%d%%\n", res.MatchScore)
	if s := strings.TrimSpace(res.ScoreReason); s != "" {
		b.WriteString(s)
		b.WriteString("\n")
	}

	b.WriteString("\n✅ 优势\n")
	for _, p := range res.Pros {
		b.WriteString("• " + p + "\n")
	}
	b.WriteString("\n⚠️ 挑战\n")
	for _, c := range res.Cons {
		b.WriteString("• " + c + "\n")
	}

	b.WriteString("\n📊 六维面相（男 / 女）\n")
	for _, d := range analysis.Dimensions() {
		m, _ := res.Male.Score(d.Key)
		f, _ := res.Female.Score(d.Key)
		fmt.Fprintf(&b, "%s：%d / %d\n", d.Label(), m.Score, f.Score)
	}

	writeFace(&b, "👨 男方", res.Male)
	writeFace(&b, "👩 女方", res.Female)
	return strings.TrimRight(b.String(), "\n")
}

func writeFace(b *strings.Builder, title string, f analysis.FaceAnalysis) {
	b.WriteString("\n" + title + "\n")
	for _, d := range analysis.Dimensions() {
		s, _ := f.Score(d.Key)
		fmt.Fprintf(b, "%s %d：%s\n", d.Label(), s.Score, s.Analysis)
	}
	if o := strings.TrimSpace(f.OverallFortune); o != "" {
		b.WriteString("总评：" + o + "\n")
	}
}

// truncate cuts on rune boundaries.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
