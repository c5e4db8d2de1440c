// Package media handles the text-safe transport encoding of images: data URLs
// carrying a media type and a base64 payload.
package media

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"idphoto/internal/domain"
)

const (
	PNG  = "image/png"
	JPEG = "image/jpeg"
	WEBP = "image/webp"
)

const (
	dataScheme   = "data:"
	base64Marker = ";base64,"
)

// DataURL is a transport encoding split into its media type and the bare
// base64 payload. MediaType is empty when the payload arrived without a prefix.
type DataURL struct {
	MediaType string
	Payload   string
}

// FromBytes encodes binary content as a DataURL.
func FromBytes(mediaType string, data []byte) DataURL {
	return DataURL{
		MediaType: Normalize(mediaType),
		Payload:   base64.StdEncoding.EncodeToString(data),
	}
}

// ParseDataURL splits s into media type and payload. Strings without the
// "data:" scheme are treated as a bare payload.
func ParseDataURL(s string) (DataURL, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DataURL{}, fmt.Errorf("media: empty data url: %w", domain.ErrInvalidInput)
	}
	if !strings.HasPrefix(strings.ToLower(s), dataScheme) {
		return DataURL{Payload: s}, nil
	}
	idx := strings.Index(strings.ToLower(s), base64Marker)
	if idx < 0 {
		return DataURL{}, fmt.Errorf("media: data url is not base64 encoded: %w", domain.ErrInvalidInput)
	}
	mediaType := s[len(dataScheme):idx]
	payload := s[idx+len(base64Marker):]
	if payload == "" {
		return DataURL{}, fmt.Errorf("media: data url has no payload: %w", domain.ErrInvalidInput)
	}
	return DataURL{MediaType: Normalize(mediaType), Payload: payload}, nil
}

// StripPrefix returns the bare payload of s, or s unchanged when it carries no
// recognizable data url prefix.
func StripPrefix(s string) string {
	d, err := ParseDataURL(s)
	if err != nil {
		return s
	}
	return d.Payload
}

// String formats the data url. A DataURL without media type formats as its
// bare payload, which keeps Parse and String symmetric.
func (d DataURL) String() string {
	if d.MediaType == "" {
		return d.Payload
	}
	return dataScheme + d.MediaType + base64Marker + d.Payload
}

// Decode returns the binary content of the payload.
func (d DataURL) Decode() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(d.Payload)
	if err != nil {
		return nil, fmt.Errorf("media: decode payload: %w", domain.ErrInvalidInput)
	}
	return data, nil
}

// WithMediaType returns a copy of d labelled with mediaType.
func (d DataURL) WithMediaType(mediaType string) DataURL {
	d.MediaType = Normalize(mediaType)
	return d
}

// Normalize lowercases a media type, drops parameters and folds known aliases.
func Normalize(mediaType string) string {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	switch mediaType {
	case "image/jpg", "image/pjpeg":
		return JPEG
	case "image/x-png":
		return PNG
	}
	return mediaType
}

// Supported reports whether mediaType is an accepted input image type.
func Supported(mediaType string) bool {
	switch Normalize(mediaType) {
	case PNG, JPEG, WEBP:
		return true
	}
	return false
}

// Sniff detects the media type of data from its leading bytes.
func Sniff(data []byte) string {
	return Normalize(http.DetectContentType(data))
}

// Extension maps a media type to a file extension.
func Extension(mediaType string) string {
	switch Normalize(mediaType) {
	case JPEG:
		return ".jpg"
	case WEBP:
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
