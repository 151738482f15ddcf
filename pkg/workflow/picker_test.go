package workflow

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.SetGray(1, 1, color.Gray{Y: 200})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, "chest.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestLocalPickerStagesImage(t *testing.T) {
	p := NewLocalPicker(0)
	path := writePNG(t, t.TempDir())

	require.NoError(t, p.SelectFile(path))
	file, ok := p.Selected()
	require.True(t, ok)
	assert.Equal(t, "chest.png", file.Name)
	assert.Equal(t, "image/png", file.ContentType)
	assert.True(t, strings.HasPrefix(p.PreviewDataURL(), "data:image/png;base64,"))

	p.ClearFile()
	_, ok = p.Selected()
	assert.False(t, ok)
	assert.Empty(t, p.PreviewDataURL())
}

func TestLocalPickerRejectsNonImage(t *testing.T) {
	dir := t.TempDir()
	p := NewLocalPicker(0)
	require.NoError(t, p.SelectFile(writePNG(t, dir)))

	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("patient notes"), 0o600))
	assert.Error(t, p.SelectFile(notes))

	file, ok := p.Selected()
	require.True(t, ok, "previous selection must survive a refused pick")
	assert.Equal(t, "chest.png", file.Name)
}

func TestLocalPickerEnforcesLimit(t *testing.T) {
	p := NewLocalPicker(16)
	assert.Error(t, p.SelectFile(writePNG(t, t.TempDir())))
	_, ok := p.Selected()
	assert.False(t, ok)
}

func TestLocalPickerAcceptsDICOM(t *testing.T) {
	data := make([]byte, 256)
	copy(data[128:], "DICM")
	path := filepath.Join(t.TempDir(), "study.dcm")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	p := NewLocalPicker(0)
	require.NoError(t, p.SelectFile(path))
	file, _ := p.Selected()
	assert.Equal(t, "application/dicom", file.ContentType)
}
