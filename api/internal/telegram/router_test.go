package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	. "github.com/smartystreets/goconvey/convey"

	"face-match/api/internal/analysis"
	"face-match/api/internal/logger"
)

type fakeSender struct{ texts []string }

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.texts = append(f.texts, m.Text)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) last() string {
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

type fakeAnalyzer struct {
	calls        int
	male, female string
	res          *analysis.RelationshipAnalysis
	err          error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, male, female string) (*analysis.RelationshipAnalysis, error) {
	f.calls++
	f.male, f.female = male, female
	return f.res, f.err
}

func newTestRouter(a Analyzer) (*Router, *fakeSender) {
	s := &fakeSender{}
	r := &Router{
		Bot: s,
		Fetch: func(_ context.Context, fileID string, maxBytes int) ([]byte, error) {
			if fileID == "huge" {
				return nil, ErrPhotoTooLarge
			}
			if fileID == "broken" {
				return nil, errors.New("connection reset")
			}
			return []byte{0xFF, 0xD8, byte(len(fileID))}, nil
		},
		Analyzer:      a,
		Messages:      analysis.DefaultMessages(),
		Log:           logger.NewNop(),
		Timeout:       time.Second,
		MaxImageBytes: 1 << 20,
		spawn:         func(fn func()) { fn() },
	}
	return r, s
}

func photo(cid int64, fileID string, size int) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: cid},
		Photo: []tgbotapi.PhotoSize{{FileID: "thumb"}, {FileID: fileID, FileSize: size}},
	}}
}

func command(cid int64, cmd string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: cid},
		Text:     "/" + cmd,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd) + 1}},
	}}
}

func sampleAnalysis() *analysis.RelationshipAnalysis {
	d := analysis.DimensionScore{Score: 70, Analysis: "饱满"}
	face := analysis.FaceAnalysis{Tianting: d, Mushen: d, Shoutang: d, Quangu: d, Hanlu: d, Caibo: d, OverallFortune: "稳"}
	return &analysis.RelationshipAnalysis{
		MatchScore: 82, ScoreReason: "互补", Pros: []string{"沟通顺畅"}, Cons: []string{"偶有固执"},
		Male: face, Female: face,
	}
}

func TestRouterFlow(t *testing.T) {
	Convey("Given a chat sending photos", t, func() {
		fa := &fakeAnalyzer{res: sampleAnalysis()}
		r, s := newTestRouter(fa)
		const cid = int64(1001)
		sessions.Delete(cid)

		Convey("the first photo is kept as the male one", func() {
			r.HandleUpdate(photo(cid, "m", 10))
			So(s.last(), ShouldEqual, maleReceivedText)
			So(fa.calls, ShouldEqual, 0)

			Convey("the second photo triggers one analysis in order", func() {
				r.HandleUpdate(photo(cid, "female", 10))

				So(fa.calls, ShouldEqual, 1)
				So(fa.male, ShouldEqual, encode([]byte{0xFF, 0xD8, 1}))
				So(fa.female, ShouldEqual, encode([]byte{0xFF, 0xD8, 6}))
				So(s.last(), ShouldStartWith, "💞 缘分契合度：82%")

				Convey("and the next photo starts a new pair", func() {
					r.HandleUpdate(photo(cid, "m2", 10))
					So(s.last(), ShouldEqual, maleReceivedText)
					So(fa.calls, ShouldEqual, 1)
				})
			})
		})

		Convey("reset drops the pending male photo", func() {
			r.HandleUpdate(photo(cid, "m", 10))
			r.HandleUpdate(command(cid, "reset"))
			So(s.last(), ShouldEqual, resetText)

			r.HandleUpdate(photo(cid, "m", 10))
			So(s.last(), ShouldEqual, maleReceivedText)
			So(fa.calls, ShouldEqual, 0)
		})

		Convey("reset during a running analysis keeps the chat busy", func() {
			r.HandleUpdate(photo(cid, "m", 10))
			sessionFor(cid).inFlight = true
			r.HandleUpdate(command(cid, "reset"))
			So(s.last(), ShouldEqual, resetText)
			So(sessionFor(cid).male, ShouldBeEmpty)

			r.HandleUpdate(photo(cid, "m", 10))
			So(s.last(), ShouldEqual, busyText)
			r.HandleUpdate(photo(cid, "f", 10))
			So(fa.calls, ShouldEqual, 0)

			sessionFor(cid).done()
			r.HandleUpdate(photo(cid, "m", 10))
			So(s.last(), ShouldEqual, maleReceivedText)
		})

		Convey("a photo while an analysis runs is refused", func() {
			sessionFor(cid).inFlight = true
			r.HandleUpdate(photo(cid, "m", 10))
			So(s.last(), ShouldEqual, busyText)
		})

		Convey("oversized photos are refused before download", func() {
			r.HandleUpdate(photo(cid, "m", 2<<20))
			So(s.last(), ShouldEqual, tooLargeText)

			r.HandleUpdate(photo(cid, "huge", 0))
			So(s.last(), ShouldEqual, tooLargeText)
		})

		Convey("download failures are reported", func() {
			r.HandleUpdate(photo(cid, "broken", 10))
			So(s.last(), ShouldContainSubstring, "connection reset")
		})

		Convey("start explains the flow", func() {
			r.HandleUpdate(command(cid, "start"))
			So(s.last(), ShouldEqual, startText)
		})
	})
}

func TestRouterFailure(t *testing.T) {
	Convey("A classified failure is sent with the retry hint", t, func() {
		fa := &fakeAnalyzer{err: analysis.NewError(analysis.KindContentBlocked, "invoke", "blocked")}
		r, s := newTestRouter(fa)
		const cid = int64(1002)
		sessions.Delete(cid)

		r.HandleUpdate(photo(cid, "m", 10))
		r.HandleUpdate(photo(cid, "f", 10))

		msgs := analysis.DefaultMessages()
		So(s.last(), ShouldEqual, msgs.ContentBlocked+"\n\n"+msgs.Retry)
		So(sessionFor(cid).busy(), ShouldBeFalse)
	})
}

func TestFormatReport(t *testing.T) {
	Convey("FormatReport lists every dimension for both people", t, func() {
		out := FormatReport(sampleAnalysis())

		So(out, ShouldContainSubstring, "• 沟通顺畅")
		So(out, ShouldContainSubstring, "• 偶有固执")
		for _, d := range analysis.Dimensions() {
			So(out, ShouldContainSubstring, d.Label()+"：70 / 70")
		}
		So(strings.Count(out, "总评：稳"), ShouldEqual, 2)
	})

	Convey("truncate keeps whole runes", t, func() {
		So(truncate("合盘分析", 2), ShouldEqual, "合盘…")
		So(truncate("ok", 5), ShouldEqual, "ok")
	})
}
