// Package intake turns user-selected image files into transport-ready
// encodings plus a display reference.
package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"idphoto/internal/domain"
	"idphoto/internal/media"
)

// DefaultMaxBytes bounds a single upload.
const DefaultMaxBytes int64 = 10 << 20

// ErrNoFile is returned when Encode is called without a file. Callers keep
// their current state.
var ErrNoFile = errors.New("intake: no file provided")

// File is an image handed over by the presentation layer.
type File struct {
	Name      string
	MediaType string
	Reader    io.Reader
}

// EncodedImage is one user-supplied image ready for transport and display.
type EncodedImage struct {
	Transport string
	Display   string
	MediaType string
	Name      string
	Size      int64
}

// Ready reports whether both the transport encoding and the display reference
// are populated.
func (e EncodedImage) Ready() bool {
	return e.Transport != "" && e.Display != ""
}

// Intake encodes files and owns the display references it hands out.
type Intake struct {
	previews *Previews
	maxBytes int64
}

// New wires an Intake around a preview registry. maxBytes <= 0 selects
// DefaultMaxBytes.
func New(previews *Previews, maxBytes int64) *Intake {
	if previews == nil {
		previews = NewPreviews()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Intake{previews: previews, maxBytes: maxBytes}
}

// Previews exposes the registry backing display references.
func (in *Intake) Previews() *Previews {
	return in.previews
}

// Encode reads the whole file and produces an EncodedImage. On error the zero
// value is returned so a half-read image is never observable.
func (in *Intake) Encode(ctx context.Context, file *File) (EncodedImage, error) {
	if file == nil || file.Reader == nil {
		return EncodedImage{}, ErrNoFile
	}
	if err := ctx.Err(); err != nil {
		return EncodedImage{}, err
	}

	data, err := io.ReadAll(io.LimitReader(file.Reader, in.maxBytes+1))
	if err != nil {
		return EncodedImage{}, fmt.Errorf("intake: read file: %w", err)
	}
	if int64(len(data)) > in.maxBytes {
		return EncodedImage{}, fmt.Errorf("intake: file exceeds %d bytes: %w", in.maxBytes, domain.ErrTooLarge)
	}
	if len(data) == 0 {
		return EncodedImage{}, fmt.Errorf("intake: empty file: %w", domain.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return EncodedImage{}, err
	}

	mediaType := media.Sniff(data)
	if !media.Supported(mediaType) {
		declared := media.Normalize(file.MediaType)
		return EncodedImage{}, fmt.Errorf("intake: %s (declared %q): %w", mediaType, declared, domain.ErrUnsupportedMedia)
	}

	transport := media.FromBytes(mediaType, data).String()
	handle := in.previews.Put(mediaType, data)
	return EncodedImage{
		Transport: transport,
		Display:   handle,
		MediaType: mediaType,
		Name:      strings.TrimSpace(file.Name),
		Size:      int64(len(data)),
	}, nil
}

// Release invalidates the display reference of img. It is safe to call with
// a zero EncodedImage.
func (in *Intake) Release(img EncodedImage) {
	in.previews.Release(img.Display)
}
