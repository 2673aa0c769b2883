package billvalidation

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestValidate_AcceptsPNG(t *testing.T) {
	res, err := Validate(pngHeader, DefaultLimits)
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.ContentType)
	assert.Equal(t, ".png", res.Extension)
	assert.EqualValues(t, len(pngHeader), res.Size)
}

func TestValidate_RejectsEmpty(t *testing.T) {
	_, err := Validate(nil, DefaultLimits)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Reason, "empty")
}

func TestValidate_RejectsOversize(t *testing.T) {
	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 2*1024*1024)...)
	_, err := Validate(big, Limits{MaxFileSizeMB: 1, MaxPDFPages: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1MB")
}

func TestValidate_RejectsPlainText(t *testing.T) {
	_, err := Validate([]byte("definitely not a receipt"), DefaultLimits)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unsupported bill format")
}

func TestValidate_RejectsBrokenPDF(t *testing.T) {
	_, err := Validate([]byte("%PDF-1.4\nnot really a pdf\n%%EOF"), DefaultLimits)
	require.Error(t, err)
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestTrimAfterEOF(t *testing.T) {
	in := []byte("%PDF-1.4 body %%EOF\r\ngarbage")
	assert.Equal(t, "%PDF-1.4 body %%EOF\r\n", string(trimAfterEOF(in)))
	assert.Equal(t, "no marker", string(trimAfterEOF([]byte("no marker"))))
}
