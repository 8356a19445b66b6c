package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
)

// DefaultPublicBaseURL is the path the HTTP server exposes stored objects under.
const DefaultPublicBaseURL = "/previews"

// FilesystemStore writes objects below a root directory.
type FilesystemStore struct {
	root    string
	baseURL string
}

// NewFilesystemStore creates the root directory if needed.
func NewFilesystemStore(root, publicBaseURL string) (*FilesystemStore, error) {
	if root == "" {
		return nil, errMissingDirectory
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create directory: %w", err)
	}
	if publicBaseURL == "" {
		publicBaseURL = DefaultPublicBaseURL
	}
	return &FilesystemStore{root: root, baseURL: publicBaseURL}, nil
}

// Put writes data atomically and returns its public URL.
func (s *FilesystemStore) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	target := filepath.Join(s.root, filepath.FromSlash(cleaned))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("storage: create directory: %w", err)
	}
	temp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("storage: create temp file: %w", err)
	}
	if _, err := temp.Write(data); err != nil {
		temp.Close()
		os.Remove(temp.Name())
		return "", fmt.Errorf("storage: write object: %w", err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(temp.Name())
		return "", fmt.Errorf("storage: close object: %w", err)
	}
	if err := os.Rename(temp.Name(), target); err != nil {
		os.Remove(temp.Name())
		return "", fmt.Errorf("storage: publish object: %w", err)
	}
	return publicURL(s.baseURL, cleaned), nil
}

// Get reads an object; the content type is derived from the key extension.
func (s *FilesystemStore) Get(ctx context.Context, key string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	cleaned, err := cleanKey(key)
	if err != nil {
		return Object{}, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(cleaned)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Object{}, ErrObjectNotFound
		}
		return Object{}, fmt.Errorf("storage: read object: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(cleaned))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return Object{Data: data, ContentType: contentType}, nil
}
