// Package prompt assembles the multimodal Gemini request for a compatibility analysis.
package prompt

import (
	"github.com/google/generative-ai-go/genai"

	"face-match/api/internal/analysis"
	"face-match/api/internal/util"
)

const (
	// ImageMIME is declared for both inline parts regardless of the upload's own type.
	ImageMIME    = "image/jpeg"
	Temperature  = float32(0.6)
	ResponseMIME = "application/json"
)

// Request is everything one GenerateContent call needs.
type Request struct {
	Parts             []genai.Part
	SystemInstruction *genai.Content
	Generation        genai.GenerationConfig
	Safety            []*genai.SafetySetting
}

// relaxed thresholds: the defaults routinely flag ordinary portraits.
var safetyCategories = []genai.HarmCategory{
	genai.HarmCategoryHateSpeech,
	genai.HarmCategorySexuallyExplicit,
	genai.HarmCategoryHarassment,
	genai.HarmCategoryDangerousContent,
}

// Build produces the request for a male/female pair. Parts are, in order:
// male image, male caption, female image, female caption.
func Build(male, female string) (*Request, error) {
	maleBytes, err := decode("male", male)
	if err != nil {
		return nil, err
	}
	femaleBytes, err := decode("female", female)
	if err != nil {
		return nil, err
	}

	temp := Temperature
	req := &Request{
		Parts: []genai.Part{
			&genai.Blob{MIMEType: ImageMIME, Data: maleBytes},
			genai.Text(MaleCaption),
			&genai.Blob{MIMEType: ImageMIME, Data: femaleBytes},
			genai.Text(FemaleCaption),
		},
		SystemInstruction: &genai.Content{
			Parts: []genai.Part{genai.Text(SystemInstruction())},
		},
		Generation: genai.GenerationConfig{
			Temperature:      &temp,
			ResponseMIMEType: ResponseMIME,
		},
	}
	for _, c := range safetyCategories {
		req.Safety = append(req.Safety, &genai.SafetySetting{Category: c, Threshold: genai.HarmBlockNone})
	}
	return req, nil
}

func decode(who, encoded string) ([]byte, error) {
	b, _, err := util.DecodeBase64MaybeDataURL(encoded)
	if err != nil {
		return nil, analysis.NewError(analysis.KindInvalidInput, "prompt", "%s image: %w", who, err)
	}
	if len(b) == 0 {
		return nil, analysis.NewError(analysis.KindInvalidInput, "prompt", "%s image: %w", who, util.ErrEmptyImage)
	}
	return b, nil
}
