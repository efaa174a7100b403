package handle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"face-match/api/internal/analysis"
	"face-match/api/internal/logger"
	"face-match/api/internal/util"
)

const defaultTimeout = 180 * time.Second

// AnalyzeRequest carries two photos, each a data URI or bare base64.
type AnalyzeRequest struct {
	MaleImage   string `json:"male_image"`
	FemaleImage string `json:"female_image"`
}

// Analyze handles POST /v1/analyze.
func (h *Handle) Analyze(w http.ResponseWriter, r *http.Request) {
	// base64 inflates by 4/3; leave room for two images plus JSON framing
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxImageBytes)*3+4096)

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "bad json: "+err.Error())
		return
	}
	if err := h.checkImage("male_image", req.MaleImage); err != nil {
		h.badRequest(w, err.Error())
		return
	}
	if err := h.checkImage("female_image", req.FemaleImage); err != nil {
		h.badRequest(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.deadline(r))
	defer cancel()

	res, err := h.analyzer.Analyze(ctx, req.MaleImage, req.FemaleImage)
	if err != nil {
		v := analysis.Classify(err, h.messages)
		code := statusFor(err, v.Category)
		h.log.Warn(ctx, "analyze failed",
			logger.String("category", string(v.Category)), logger.Int("status", code), logger.Error(err))
		writeJSON(w, code, v)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// checkImage decodes once to reject garbage and oversized photos before any model call.
func (h *Handle) checkImage(field, encoded string) error {
	b, _, err := util.DecodeBase64MaybeDataURL(encoded)
	if err != nil {
		return fmt.Errorf("bad %s: %w", field, err)
	}
	if len(b) == 0 {
		return fmt.Errorf("bad %s: %w", field, util.ErrEmptyImage)
	}
	if len(b) > h.maxImageBytes {
		return fmt.Errorf("%s too large: %d bytes, limit %d", field, len(b), h.maxImageBytes)
	}
	return nil
}

func (h *Handle) badRequest(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusBadRequest, analysis.Verdict{
		Category: analysis.CategoryAnalysisFailed,
		Message:  fmt.Sprintf(h.messages.AnalysisFailed, detail),
		Retry:    h.messages.Retry,
		Detail:   detail,
	})
}

// deadline reads X-Request-Timeout or ?timeoutSec, in seconds. It never
// exceeds the configured timeout, which the server's WriteTimeout is sized to.
func (h *Handle) deadline(r *http.Request) time.Duration {
	ts := r.Header.Get("X-Request-Timeout")
	if ts == "" {
		ts = r.URL.Query().Get("timeoutSec")
	}
	if v, _ := strconv.Atoi(ts); v > 0 {
		if d := time.Duration(v) * time.Second; d < h.timeout {
			return d
		}
	}
	return h.timeout
}

func statusFor(err error, c analysis.Category) int {
	if errors.Is(err, analysis.ErrInvalidInput) {
		return http.StatusBadRequest
	}
	switch c {
	case analysis.CategoryConfigurationMissing:
		return http.StatusServiceUnavailable
	case analysis.CategoryContentBlocked:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
