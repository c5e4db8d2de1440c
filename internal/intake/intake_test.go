package intake

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idphoto/internal/domain"
	"idphoto/internal/media"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRpayload")

func TestEncodeProducesReadyImage(t *testing.T) {
	in := New(nil, 0)
	img, err := in.Encode(context.Background(), &File{Name: " portrait.png ", Reader: bytes.NewReader(pngBytes)})
	require.NoError(t, err)

	assert.True(t, img.Ready())
	assert.Equal(t, media.PNG, img.MediaType)
	assert.Equal(t, "portrait.png", img.Name)
	assert.Equal(t, int64(len(pngBytes)), img.Size)
	assert.True(t, strings.HasPrefix(img.Transport, "data:image/png;base64,"))

	d, err := media.ParseDataURL(img.Transport)
	require.NoError(t, err)
	decoded, err := d.Decode()
	require.NoError(t, err)
	assert.Equal(t, pngBytes, decoded)

	preview, ok := in.Previews().Get(img.Display)
	require.True(t, ok)
	assert.Equal(t, pngBytes, preview.Data)
}

func TestEncodeWithoutFileIsNoop(t *testing.T) {
	in := New(nil, 0)
	img, err := in.Encode(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFile)
	assert.False(t, img.Ready())
	assert.Equal(t, 0, in.Previews().Len())
}

func TestEncodeRejectsUnsupportedMedia(t *testing.T) {
	in := New(nil, 0)
	img, err := in.Encode(context.Background(), &File{Reader: strings.NewReader("just some text")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnsupportedMedia))
	assert.Equal(t, EncodedImage{}, img)
	assert.Equal(t, 0, in.Previews().Len())
}

func TestEncodeRejectsOversizedFile(t *testing.T) {
	in := New(nil, 8)
	img, err := in.Encode(context.Background(), &File{Reader: bytes.NewReader(pngBytes)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTooLarge))
	assert.False(t, img.Ready())
}

func TestEncodeRejectsEmptyFile(t *testing.T) {
	in := New(nil, 0)
	_, err := in.Encode(context.Background(), &File{Reader: bytes.NewReader(nil)})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestEncodeHonoursCancelledContext(t *testing.T) {
	in := New(nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := in.Encode(ctx, &File{Reader: bytes.NewReader(pngBytes)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEachEncodeGetsFreshHandleAndReleaseInvalidates(t *testing.T) {
	in := New(nil, 0)
	first, err := in.Encode(context.Background(), &File{Reader: bytes.NewReader(pngBytes)})
	require.NoError(t, err)
	second, err := in.Encode(context.Background(), &File{Reader: bytes.NewReader(pngBytes)})
	require.NoError(t, err)

	assert.NotEqual(t, first.Display, second.Display)
	assert.Equal(t, 2, in.Previews().Len())

	in.Release(first)
	_, ok := in.Previews().Get(first.Display)
	assert.False(t, ok)
	assert.Equal(t, 1, in.Previews().Len())

	in.Release(EncodedImage{})
	in.Release(first)
	assert.Equal(t, 1, in.Previews().Len())
}
