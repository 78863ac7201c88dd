package eventsync

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ImageHandle is a local image selected for upload.
type ImageHandle interface {
	Open() (io.ReadCloser, error)
	Name() string
}

type fileHandle struct {
	path string
}

// FileHandle returns an ImageHandle backed by a file on disk.
func FileHandle(path string) ImageHandle {
	return fileHandle{path: path}
}

func (h fileHandle) Open() (io.ReadCloser, error) { return os.Open(h.path) }
func (h fileHandle) Name() string                 { return h.path }

type readerHandle struct {
	name   string
	r      io.Reader
	opened bool
}

// ReaderHandle returns an ImageHandle backed by a reader. It can be opened once.
func ReaderHandle(name string, r io.Reader) ImageHandle {
	return &readerHandle{name: name, r: r}
}

func (h *readerHandle) Open() (io.ReadCloser, error) {
	if h.opened {
		return nil, fmt.Errorf("image %q already consumed", h.name)
	}
	h.opened = true
	if rc, ok := h.r.(io.ReadCloser); ok {
		return rc, nil
	}
	return io.NopCloser(h.r), nil
}

func (h *readerHandle) Name() string { return h.name }

// materializeImage copies the handle's content into a uniquely named file in
// dir. The caller removes the file when done.
func materializeImage(dir string, image ImageHandle) (string, error) {
	src, err := image.Open()
	if err != nil {
		return "", fmt.Errorf("opening image %s: %w", image.Name(), err)
	}
	defer src.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("image_%s.jpg", uuid.New().String()))
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("creating temp image: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("copying image: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing temp image: %w", err)
	}
	return path, nil
}
