package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	// Mockups ship as PNG or JPEG.
	_ "image/jpeg"
	_ "image/png"
)

const maxMockupBytes = 20 << 20

var errMockupOutsideRoot = errors.New("raster: mockup path escapes root")

// BackgroundLoader resolves a mockup reference to pixels.
type BackgroundLoader interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// MockupLoader reads mockups from a local directory or over HTTP and keeps them decoded.
type MockupLoader struct {
	Root   string
	Client *http.Client

	mu    sync.Mutex
	cache map[string]image.Image
}

// NewMockupLoader constructs a loader rooted at dir.
func NewMockupLoader(root string, client *http.Client) *MockupLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &MockupLoader{Root: root, Client: client, cache: make(map[string]image.Image)}
}

// Load returns the decoded mockup for ref.
func (l *MockupLoader) Load(ctx context.Context, ref string) (image.Image, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrMissingBackground)
	}
	l.mu.Lock()
	cached, ok := l.cache[ref]
	l.mu.Unlock()
	if ok {
		return cached, nil
	}

	var (
		img image.Image
		err error
	)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		img, err = l.fetch(ctx, ref)
	} else {
		img, err = l.open(ref)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingBackground, err)
	}

	l.mu.Lock()
	l.cache[ref] = img
	l.mu.Unlock()
	return img, nil
}

func (l *MockupLoader) open(ref string) (image.Image, error) {
	root, err := filepath.Abs(l.Root)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(root, filepath.Clean("/"+ref))
	if !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return nil, errMockupOutsideRoot
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	img, _, err := image.Decode(io.LimitReader(file, maxMockupBytes))
	return img, err
}

func (l *MockupLoader) fetch(ctx context.Context, url string) (image.Image, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	response, err := l.Client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", response.StatusCode)
	}
	img, _, err := image.Decode(io.LimitReader(response.Body, maxMockupBytes))
	return img, err
}
