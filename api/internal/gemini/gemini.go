// Package gemini performs the single remote call of an analysis attempt.
package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"face-match/api/internal/analysis"
	"face-match/api/internal/prompt"
)

const DefaultModel = "gemini-2.5-flash"

type Engine struct {
	Model string
	opts  []option.ClientOption
}

// New creates an engine for model. Extra client options (endpoint, HTTP client)
// are appended after the API key on every call.
func New(model string, opts ...option.ClientOption) *Engine {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &Engine{Model: model, opts: opts}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

// Invoke sends req once and returns the raw text of the first candidate.
// There is no retry; the caller decides whether to resubmit.
func (e *Engine) Invoke(ctx context.Context, req *prompt.Request, apiKey string) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", analysis.NewError(analysis.KindConfigurationMissing, "invoke", "GEMINI_API_KEY is empty")
	}
	if req == nil {
		return "", analysis.NewError(analysis.KindInvalidInput, "invoke", "nil request")
	}

	opts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, e.opts...)
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", analysis.Wrap(analysis.KindTransportFailure, "invoke", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	if m == nil {
		return "", analysis.NewError(analysis.KindTransportFailure, "invoke", "gemini: model is nil")
	}
	m.GenerationConfig = req.Generation
	m.SystemInstruction = req.SystemInstruction
	m.SafetySettings = req.Safety

	resp, err := m.GenerateContent(ctx, req.Parts...)
	if err != nil {
		return "", classifyError(err)
	}
	txt := firstText(resp)
	if strings.TrimSpace(txt) == "" {
		return "", analysis.NewError(analysis.KindEmptyResponse, "invoke", "gemini returned empty response")
	}
	return txt, nil
}

// firstText joins the text parts of the first candidate that has content.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}

func classifyError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return analysis.Wrap(analysis.KindContentBlocked, "invoke", err)
	}
	if keyRejected(err) {
		return analysis.Wrap(analysis.KindConfigurationInvalid, "invoke", err)
	}
	return analysis.Wrap(analysis.KindTransportFailure, "invoke", err)
}

// keyRejected reports whether the service refused the credential itself.
func keyRejected(err error) bool {
	var ae *apierror.APIError
	if errors.As(err, &ae) {
		if ae.Reason() == "API_KEY_INVALID" {
			return true
		}
		if s := ae.GRPCStatus(); s != nil && rejectedCode(s.Code()) {
			return true
		}
		switch ae.HTTPCode() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return true
		}
	}
	if s, ok := status.FromError(err); ok && rejectedCode(s.Code()) {
		return true
	}
	return false
}

func rejectedCode(c codes.Code) bool {
	return c == codes.Unauthenticated || c == codes.PermissionDenied
}
