package models

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// MaxImageBytes is the largest image accepted for identification (5 MiB)
const MaxImageBytes = 5 * 1024 * 1024

// ImageBuffer holds a single acquired image. It is produced by the media
// acquirer and consumed once by the identification client.
type ImageBuffer struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mimeType"`
	Source   string `json:"source,omitempty"` // "file" or "camera"
}

// Base64 returns the image bytes as standard base64 without a data-URI prefix
func (b ImageBuffer) Base64() string {
	return base64.StdEncoding.EncodeToString(b.Data)
}

// DataURI returns the image as a data URI, the form browsers hand to the proxy
func (b ImageBuffer) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", b.MIMEType, b.Base64())
}

// IsImageMIME reports whether mimeType names an image type
func IsImageMIME(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

// DecodeImageData parses either a data URI ("data:image/jpeg;base64,....")
// or bare base64. The MIME type from the URI wins over fallbackMIME.
func DecodeImageData(imageData, fallbackMIME string) (ImageBuffer, error) {
	mimeType := fallbackMIME
	payload := strings.TrimSpace(imageData)

	if strings.HasPrefix(payload, "data:") {
		header, data, ok := strings.Cut(payload, ",")
		if !ok {
			return ImageBuffer{}, fmt.Errorf("malformed data URI")
		}
		meta := strings.TrimPrefix(header, "data:")
		if t, _, _ := strings.Cut(meta, ";"); t != "" {
			mimeType = t
		}
		payload = data
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ImageBuffer{}, fmt.Errorf("invalid base64 image data: %w", err)
	}

	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	return ImageBuffer{Data: raw, MIMEType: mimeType}, nil
}
