package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"face-match/api/internal/analysis"
	"face-match/api/internal/credential"
	"face-match/api/internal/pipeline"
	"face-match/api/internal/prompt"
	"face-match/api/internal/util"
)

type fakeInvoker struct {
	calls  int
	raw    string
	err    error
	apiKey string
	req    *prompt.Request
}

func (f *fakeInvoker) Invoke(_ context.Context, req *prompt.Request, apiKey string) (string, error) {
	f.calls++
	f.req, f.apiKey = req, apiKey
	return f.raw, f.err
}

type staticResolver struct{ key string }

func (s staticResolver) Resolve() (credential.Found, bool) {
	if s.key == "" {
		return credential.Found{}, false
	}
	return credential.Found{Value: s.key, Source: "test"}, true
}

type memJournal struct {
	attempts []pipeline.Attempt
	err      error
}

func (m *memJournal) Record(_ context.Context, a pipeline.Attempt) error {
	m.attempts = append(m.attempts, a)
	return m.err
}

var (
	imgA = util.EncodeDataURL([]byte{0xFF, 0xD8, 0xFF, 0xE0, 'A'})
	imgB = util.EncodeDataURL([]byte{0xFF, 0xD8, 0xFF, 0xE0, 'B', 'B'})
)

func modelOutput(score int) string {
	d := map[string]any{"score": 70, "analysis": "端正"}
	face := map[string]any{"tianting": d, "mushen": d, "shoutang": d, "quangu": d, "hanlu": d, "caibo": d, "overallFortune": "顺遂"}
	b, _ := json.Marshal(map[string]any{
		"matchScore": score, "scoreReason": "互补", "pros": []string{"a"}, "cons": []string{"b"},
		"male": face, "female": face,
	})
	return string(b)
}

func TestAnalyze(t *testing.T) {
	Convey("Given an analyzer with a working key", t, func() {
		inv := &fakeInvoker{raw: modelOutput(82)}
		cache := analysis.NewMemoryCache()
		journal := &memJournal{}
		a := pipeline.New(inv,
			pipeline.WithResolver(staticResolver{key: "AIza-test"}),
			pipeline.WithCache(cache),
			pipeline.WithJournal(journal),
			pipeline.WithModelName("gemini-2.5-flash"),
		)
		ctx := context.Background()

		Convey("the first submission calls the model once and caches the result", func() {
			res, err := a.Analyze(ctx, imgA, imgB)
			So(err, ShouldBeNil)
			So(res.MatchScore, ShouldEqual, 82)
			So(inv.calls, ShouldEqual, 1)
			So(inv.apiKey, ShouldEqual, "AIza-test")
			So(inv.req.Parts, ShouldHaveLength, 4)
			So(cache.Len(), ShouldEqual, 1)

			Convey("resubmitting the pair is served from cache", func() {
				again, err := a.Analyze(ctx, imgA, imgB)
				So(err, ShouldBeNil)
				So(again.MatchScore, ShouldEqual, 82)
				So(*again, ShouldResemble, *res)
				So(inv.calls, ShouldEqual, 1)

				So(journal.attempts, ShouldHaveLength, 2)
				So(journal.attempts[0].Outcome, ShouldEqual, pipeline.OutcomeOK)
				So(journal.attempts[1].Outcome, ShouldEqual, pipeline.OutcomeCacheHit)
				So(journal.attempts[1].MatchScore, ShouldEqual, 82)
				So(journal.attempts[0].Model, ShouldEqual, "gemini-2.5-flash")
			})

			Convey("mutating a returned value does not touch the cache", func() {
				res.Pros[0] = "changed"
				again, _ := a.Analyze(ctx, imgA, imgB)
				So(again.Pros[0], ShouldEqual, "a")
			})

			Convey("the swapped pair is a different entry", func() {
				_, err := a.Analyze(ctx, imgB, imgA)
				So(err, ShouldBeNil)
				So(inv.calls, ShouldEqual, 2)
				So(cache.Len(), ShouldEqual, 2)
			})
		})

		Convey("non-JSON output fails and is not cached", func() {
			inv.raw = "not json"
			_, err := a.Analyze(ctx, imgA, imgB)
			So(analysis.KindOf(err), ShouldEqual, analysis.KindMalformedResponse)
			So(cache.Len(), ShouldEqual, 0)

			Convey("and a later valid answer for the same pair calls the model again", func() {
				inv.raw = modelOutput(40)
				res, err := a.Analyze(ctx, imgA, imgB)
				So(err, ShouldBeNil)
				So(res.MatchScore, ShouldEqual, 40)
				So(inv.calls, ShouldEqual, 2)
			})
		})

		Convey("an out-of-range score is rejected, not clamped", func() {
			inv.raw = modelOutput(100)
			_, err := a.Analyze(ctx, imgA, imgB)
			So(errors.Is(err, analysis.ErrMalformedResponse), ShouldBeTrue)
			So(cache.Len(), ShouldEqual, 0)
		})

		Convey("empty output is EmptyResponse before parsing", func() {
			inv.raw = ""
			_, err := a.Analyze(ctx, imgA, imgB)
			So(analysis.KindOf(err), ShouldEqual, analysis.KindEmptyResponse)
			So(analysis.Classify(err, analysis.DefaultMessages()).Category, ShouldEqual, analysis.CategoryContentBlocked)
			So(journal.attempts[0].Outcome, ShouldEqual, "empty_response")
		})

		Convey("untyped invoker errors become transport failures", func() {
			inv.err = errors.New("connection reset")
			_, err := a.Analyze(ctx, imgA, imgB)
			So(analysis.KindOf(err), ShouldEqual, analysis.KindTransportFailure)
			So(err.Error(), ShouldContainSubstring, "connection reset")
		})

		Convey("typed invoker errors pass through", func() {
			inv.err = analysis.NewError(analysis.KindContentBlocked, "invoke", "blocked")
			_, err := a.Analyze(ctx, imgA, imgB)
			So(analysis.KindOf(err), ShouldEqual, analysis.KindContentBlocked)
		})

		Convey("undecodable images fail before the model is called", func() {
			_, err := a.Analyze(ctx, "%%%", imgB)
			So(analysis.KindOf(err), ShouldEqual, analysis.KindInvalidInput)
			So(inv.calls, ShouldEqual, 0)
		})

		Convey("journal failures do not fail the attempt", func() {
			journal.err = errors.New("db down")
			res, err := a.Analyze(ctx, imgA, imgB)
			So(err, ShouldBeNil)
			So(res.MatchScore, ShouldEqual, 82)
		})
	})

	Convey("Given no credential anywhere", t, func() {
		inv := &fakeInvoker{raw: modelOutput(82)}
		a := pipeline.New(inv, pipeline.WithResolver(staticResolver{}))

		_, err := a.Analyze(context.Background(), imgA, imgB)

		So(errors.Is(err, analysis.ErrConfigurationMissing), ShouldBeTrue)
		So(inv.calls, ShouldEqual, 0)
		So(a.CacheLen(), ShouldEqual, 0)
	})

	Convey("Given a cached pair and no credential", t, func() {
		cache := analysis.NewMemoryCache()
		cache.Store(analysis.Fingerprint(imgA, imgB), analysis.RelationshipAnalysis{MatchScore: 77})
		inv := &fakeInvoker{}
		a := pipeline.New(inv, pipeline.WithResolver(staticResolver{}), pipeline.WithCache(cache))

		res, err := a.Analyze(context.Background(), imgA, imgB)

		So(err, ShouldBeNil)
		So(res.MatchScore, ShouldEqual, 77)
		So(inv.calls, ShouldEqual, 0)
	})
}
