package workflow

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/synaptica-ai/radiology-console/pkg/backend"
)

// MaxImageBytes matches the upload form's advertised limit.
const MaxImageBytes = 10 * 1024 * 1024

// FilePicker is the file-selection capability the workflow consumes. It is
// pure I/O glue: choosing, clearing and previewing the staged image.
type FilePicker interface {
	SelectFile(path string) error
	ClearFile()
	PreviewDataURL() string
	Selected() (backend.Upload, bool)
}

// LocalPicker stages images from the local filesystem.
type LocalPicker struct {
	maxBytes int64

	mu   sync.Mutex
	file *backend.Upload
}

func NewLocalPicker(maxBytes int64) *LocalPicker {
	if maxBytes <= 0 {
		maxBytes = MaxImageBytes
	}
	return &LocalPicker{maxBytes: maxBytes}
}

// SelectFile stages the image at path, replacing any previous selection.
// Non-image files are refused and leave the current selection untouched.
func (p *LocalPicker) SelectFile(path string) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, p.maxBytes+1))
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > p.maxBytes {
		return fmt.Errorf("image %s exceeds %d bytes", filepath.Base(path), p.maxBytes)
	}
	if len(data) == 0 {
		return fmt.Errorf("image %s is empty", filepath.Base(path))
	}

	contentType := http.DetectContentType(data)
	if isDICOM(data) {
		contentType = "application/dicom"
	} else if !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("%s is not an image (%s)", filepath.Base(path), contentType)
	}

	p.mu.Lock()
	p.file = &backend.Upload{Name: filepath.Base(path), ContentType: contentType, Data: data}
	p.mu.Unlock()
	return nil
}

func (p *LocalPicker) ClearFile() {
	p.mu.Lock()
	p.file = nil
	p.mu.Unlock()
}

// PreviewDataURL renders the staged image as a data URL, or "" when nothing
// is staged.
func (p *LocalPicker) PreviewDataURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return ""
	}
	return "data:" + p.file.ContentType + ";base64," + base64.StdEncoding.EncodeToString(p.file.Data)
}

func (p *LocalPicker) Selected() (backend.Upload, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return backend.Upload{}, false
	}
	return *p.file, true
}

// isDICOM checks the "DICM" preamble marker at offset 128.
func isDICOM(data []byte) bool {
	return len(data) >= 132 && string(data[128:132]) == "DICM"
}
