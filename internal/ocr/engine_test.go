package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insurechat/bridge/config"
	"github.com/insurechat/bridge/pkg/logger"
)

func pngOfSize(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeSize(t *testing.T, raw []byte) (int, int) {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func TestUpscaleForOCRSmallImage(t *testing.T) {
	small := pngOfSize(t, 400, 300)

	out := upscaleForOCR(small)
	w, h := decodeSize(t, out)

	// Long edge reaches the floor, aspect ratio holds.
	assert.Equal(t, minOCREdge, w)
	assert.Equal(t, 1200, h)
}

func TestUpscaleForOCRPortraitUsesLongEdge(t *testing.T) {
	small := pngOfSize(t, 300, 400)

	out := upscaleForOCR(small)
	w, h := decodeSize(t, out)

	assert.Equal(t, minOCREdge, h)
	assert.Equal(t, 1200, w)
}

func TestUpscaleForOCRLeavesLargeImageAlone(t *testing.T) {
	large := pngOfSize(t, 1700, 900)
	out := upscaleForOCR(large)
	assert.Equal(t, large, out)
}

func TestUpscaleForOCRLeavesUndecodableInputAlone(t *testing.T) {
	raw := []byte("not an image at all")
	assert.Equal(t, raw, upscaleForOCR(raw))
}

func TestNewEngineRejectsUnknown(t *testing.T) {
	_, err := NewEngine(&config.OCRConfig{Engine: "carrier-pigeon"}, logger.NewTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported OCR engine")
}
