package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	. "github.com/smartystreets/goconvey/convey"
	"google.golang.org/api/option"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"face-match/api/internal/analysis"
	"face-match/api/internal/prompt"
)

func TestFirstText(t *testing.T) {
	Convey("firstText", t, func() {
		So(firstText(nil), ShouldBeEmpty)
		So(firstText(&genai.GenerateContentResponse{}), ShouldBeEmpty)

		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
			{Content: nil},
			{Content: &genai.Content{Parts: []genai.Part{&genai.Blob{MIMEType: "image/png"}}}},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"matchScore":`), genai.Text(`82}`)}}},
		}}
		So(firstText(resp), ShouldEqual, `{"matchScore":82}`)
	})
}

func TestClassifyError(t *testing.T) {
	Convey("classifyError", t, func() {
		Convey("a safety block is ContentBlocked", func() {
			err := classifyError(&genai.BlockedError{
				PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety},
			})
			So(analysis.KindOf(err), ShouldEqual, analysis.KindContentBlocked)
		})

		Convey("an invalid key reason is ConfigurationInvalid", func() {
			st, derr := status.New(codes.InvalidArgument, "API key not valid").
				WithDetails(&errdetails.ErrorInfo{Reason: "API_KEY_INVALID", Domain: "googleapis.com"})
			So(derr, ShouldBeNil)
			ae, ok := apierror.FromError(st.Err())
			So(ok, ShouldBeTrue)

			err := classifyError(fmt.Errorf("generate: %w", ae))
			So(analysis.KindOf(err), ShouldEqual, analysis.KindConfigurationInvalid)
		})

		Convey("permission denied is ConfigurationInvalid", func() {
			err := classifyError(status.Error(codes.PermissionDenied, "denied"))
			So(errors.Is(err, analysis.ErrConfigurationInvalid), ShouldBeTrue)
		})

		Convey("anything else is a transport failure keeping the cause text", func() {
			cause := status.Error(codes.Unavailable, "backend overloaded")
			err := classifyError(cause)
			So(analysis.KindOf(err), ShouldEqual, analysis.KindTransportFailure)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "backend overloaded")
		})
	})
}

func TestInvokeGuards(t *testing.T) {
	Convey("Invoke refuses to call out without a key or request", t, func() {
		e := New("")
		So(e.GetModel(), ShouldEqual, DefaultModel)

		_, err := e.Invoke(context.Background(), &prompt.Request{}, "  ")
		So(analysis.KindOf(err), ShouldEqual, analysis.KindConfigurationMissing)

		_, err = e.Invoke(context.Background(), nil, "AIza-key")
		So(analysis.KindOf(err), ShouldEqual, analysis.KindInvalidInput)
	})
}

// fakeGenerative serves one canned REST reply and keeps the last request.
type fakeGenerative struct {
	mu     sync.Mutex
	status int
	reply  string
	path   string
	body   map[string]any
}

func (f *fakeGenerative) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.path = r.URL.Path
	f.body = nil
	_ = json.Unmarshal(raw, &f.body)
	status, reply := f.status, f.reply
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, reply)
}

func TestInvokeOverREST(t *testing.T) {
	Convey("Given a generative endpoint serving canned replies", t, func() {
		fake := &fakeGenerative{status: http.StatusOK}
		srv := httptest.NewServer(fake)
		defer srv.Close()

		e := New("", option.WithEndpoint(srv.URL), option.WithHTTPClient(srv.Client()))
		img := base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF, 0xE0})
		req, err := prompt.Build(img, img)
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("a candidate's text is returned as is", func() {
			fake.reply = `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"matchScore\":82}"}]},"finishReason":"STOP"}]}`

			txt, err := e.Invoke(ctx, req, "AIza-test")
			So(err, ShouldBeNil)
			So(txt, ShouldEqual, `{"matchScore":82}`)
			So(strings.HasSuffix(fake.path, "models/"+DefaultModel+":generateContent"), ShouldBeTrue)

			Convey("and the request carries the generation and safety settings", func() {
				gen, ok := fake.body["generationConfig"].(map[string]any)
				So(ok, ShouldBeTrue)
				So(gen["temperature"], ShouldAlmostEqual, 0.6, 1e-6)
				So(gen["responseMimeType"], ShouldEqual, "application/json")

				safety, ok := fake.body["safetySettings"].([]any)
				So(ok, ShouldBeTrue)
				So(safety, ShouldHaveLength, 4)
				for _, s := range safety {
					threshold := fmt.Sprint(s.(map[string]any)["threshold"])
					So(threshold, ShouldBeIn, []string{"4", "BLOCK_NONE"})
				}

				_, ok = fake.body["systemInstruction"]
				So(ok, ShouldBeTrue)
			})
		})

		Convey("an empty candidate text is EmptyResponse", func() {
			fake.reply = `{"candidates":[{"content":{"role":"model","parts":[{"text":"  "}]},"finishReason":"STOP"}]}`

			_, err := e.Invoke(ctx, req, "AIza-test")
			So(analysis.KindOf(err), ShouldEqual, analysis.KindEmptyResponse)
		})

		Convey("a rejected key is ConfigurationInvalid", func() {
			fake.status = http.StatusBadRequest
			fake.reply = `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT",` +
				`"details":[{"@type":"type.googleapis.com/google.rpc.ErrorInfo","reason":"API_KEY_INVALID","domain":"googleapis.com"}]}}`

			_, err := e.Invoke(ctx, req, "AIza-bad")
			So(analysis.KindOf(err), ShouldEqual, analysis.KindConfigurationInvalid)
		})

		Convey("a blocked prompt is ContentBlocked", func() {
			fake.reply = `{"promptFeedback":{"blockReason":"SAFETY"}}`

			_, err := e.Invoke(ctx, req, "AIza-test")
			So(analysis.KindOf(err), ShouldEqual, analysis.KindContentBlocked)
		})
	})
}
