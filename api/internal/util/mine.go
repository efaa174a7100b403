package util

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

var ErrEmptyImage = errors.New("empty image")

// SniffMimeHTTP detects jpeg/png by magic bytes, falling back to net/http sniffing.
func SniffMimeHTTP(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return "image/jpeg"
	}
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return "image/png"
	}
	if len(b) > 0 {
		return http.DetectContentType(b)
	}
	return "application/octet-stream"
}

func MakeDataURL(mime, b64 string) string {
	return "data:" + mime + ";base64," + b64
}

// EncodeDataURL turns raw image bytes into the encoded form the analyzer takes.
func EncodeDataURL(b []byte) string {
	return MakeDataURL(SniffMimeHTTP(b), base64.StdEncoding.EncodeToString(b))
}

// StripDataURL drops a "data:<mime>;base64," prefix and reports the mime from it.
func StripDataURL(s string) (payload, mime string) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(strings.ToLower(s), "data:") {
		return s, ""
	}
	idx := strings.IndexByte(s, ',')
	if idx < 0 {
		return s, ""
	}
	meta := s[len("data:"):idx] // "<mime>;base64"
	if semi := strings.IndexByte(meta, ';'); semi >= 0 {
		mime = meta[:semi]
	} else {
		mime = meta
	}
	return s[idx+1:], mime
}

// DecodeBase64MaybeDataURL decodes base64; for a data:URI it also returns the mime from the prefix.
func DecodeBase64MaybeDataURL(s string) ([]byte, string, error) {
	payload, hintMIME := StripDataURL(s)
	if payload == "" {
		return nil, "", ErrEmptyImage
	}
	// standard first, then URL-safe and unpadded variants
	if b, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return b, hintMIME, nil
	} else if b2, err2 := base64.URLEncoding.DecodeString(payload); err2 == nil {
		return b2, hintMIME, nil
	} else if b3, err3 := base64.RawStdEncoding.DecodeString(payload); err3 == nil {
		return b3, hintMIME, nil
	} else {
		return nil, "", err
	}
}
