package checkin

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path/filepath"
	"sync"
)

// File is a locally selected photo.
type File struct {
	Name        string
	Data        []byte
	ContentType string
}

// ReadFile loads a photo from disk.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read photo: %w", err)
	}
	if len(data) == 0 {
		return File{}, ErrNoFile
	}
	return File{Name: filepath.Base(path), Data: data, ContentType: http.DetectContentType(data)}, nil
}

// Preview is a local resource describing the selected file. It must be
// released when the selection changes or the screen goes away.
type Preview struct {
	Name        string
	Size        int
	ContentType string
	Width       int
	Height      int

	once    sync.Once
	release func()
}

// Release frees the preview. Further calls are no-ops.
func (p *Preview) Release() {
	if p == nil {
		return
	}
	p.once.Do(p.release)
}

// Previews counts outstanding previews.
type Previews struct {
	mu          sync.Mutex
	outstanding int
	acquired    int
}

// Acquire creates a preview for file.
func (t *Previews) Acquire(file File) *Preview {
	contentType := file.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(file.Data)
	}
	p := &Preview{Name: file.Name, Size: len(file.Data), ContentType: contentType}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(file.Data)); err == nil {
		p.Width, p.Height = cfg.Width, cfg.Height
	}

	t.mu.Lock()
	t.outstanding++
	t.acquired++
	t.mu.Unlock()

	p.release = func() {
		t.mu.Lock()
		t.outstanding--
		t.mu.Unlock()
	}
	return p
}

// Outstanding is the number of previews not yet released.
func (t *Previews) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outstanding
}

// Acquired is the number of previews ever created.
func (t *Previews) Acquired() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.acquired
}
