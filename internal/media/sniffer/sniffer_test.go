package sniffer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	jpegHead = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	pngHead  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13}
	bmpHead  = []byte{'B', 'M', 0x46, 0, 0, 0, 0, 0, 0, 0, 0x36, 0, 0, 0, 40, 0, 0, 0, 1, 0}
)

func TestDetectHead(t *testing.T) {
	cases := []struct {
		name string
		head []byte
		want MediaType
		mime string
	}{
		{"jpeg", jpegHead, TypeJPEG, "image/jpeg"},
		{"png", pngHead, TypePNG, "image/png"},
		{"bmp", bmpHead, TypeBMP, "image/bmp"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := DetectHead(tc.head)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Type)
			assert.Equal(t, tc.mime, res.MIME)
		})
	}
}

func TestDetectHeadRejectsOthers(t *testing.T) {
	for _, head := range [][]byte{
		nil,
		[]byte("GIF89a......"),
		[]byte("<svg xmlns='http://www.w3.org/2000/svg'/>"),
		[]byte("BM but not a bitmap header"),
	} {
		_, err := DetectHead(head)
		assert.ErrorIs(t, err, ErrUnknownType)
	}
}

func TestDetectReturnsConsumedHead(t *testing.T) {
	res, head, err := Detect(bytes.NewReader(pngHead))
	require.NoError(t, err)
	assert.Equal(t, TypePNG, res.Type)
	assert.Equal(t, pngHead, head)
}

func TestTypeFromFilename(t *testing.T) {
	for name, want := range map[string]MediaType{
		"left.JPG":  TypeJPEG,
		"left.jpeg": TypeJPEG,
		"front.png": TypePNG,
		"back.Bmp":  TypeBMP,
	} {
		got, ok := TypeFromFilename(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	for _, name := range []string{"x.gif", "x.webp", "noext", "x.png.exe"} {
		_, ok := TypeFromFilename(name)
		assert.False(t, ok, name)
	}
}
