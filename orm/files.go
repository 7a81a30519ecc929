// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package orm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// FileHandler downloads the file a resource advertises through a
// pair of fields "X_url" and "X_sha256".
type FileHandler struct {
	resource *Resource
	name     string

	// Fs is where Retrieve() writes files.  It defaults to the
	// operating system's file system.
	Fs afero.Fs

	// Content holds the downloaded bytes after Retrieve().
	Content []byte

	// Path is the file Retrieve() last wrote, if any.
	Path string
}

func newFileHandler(r *Resource, name string) *FileHandler {
	return &FileHandler{
		resource: r,
		name:     name,
		Fs:       afero.NewOsFs(),
	}
}

// Name returns the base name of the field pair, such as "iso" for
// "iso_url" and "iso_sha256".
func (h *FileHandler) Name() string {
	return h.name
}

// URL returns the download location.
func (h *FileHandler) URL() string {
	switch v := h.resource.fields[h.name+"_url"].(type) {
	case string:
		return v
	case *Resource:
		if v != nil {
			return v.url
		}
	}
	return ""
}

// SHA256 returns the advertised hex digest.
func (h *FileHandler) SHA256() string {
	s, _ := h.resource.fields[h.name+"_sha256"].(string)
	return s
}

// Retrieve downloads the file.  With an empty dest the content is
// only kept in memory.  A dest ending in "/" names a directory, and
// the file is written there under the last path segment of the URL
// it was finally served from; any other dest is the file name.
func (h *FileHandler) Retrieve(ctx context.Context, dest string) error {
	client := h.resource.client
	if client == nil {
		return ErrUnboundResource
	}
	content, finalURL, err := client.Download(ctx, h.URL())
	if err != nil {
		return err
	}
	h.Content = content
	if dest == "" {
		return nil
	}
	if strings.HasSuffix(dest, "/") {
		if finalURL == "" {
			finalURL = h.URL()
		}
		u := finalURL
		if i := strings.IndexAny(u, "?#"); i >= 0 {
			u = u[:i]
		}
		dest = path.Join(dest, path.Base(u))
	}
	if err := afero.WriteFile(h.Fs, dest, content, 0644); err != nil {
		return err
	}
	h.Path = dest
	return nil
}

// ValidateSHA256 checks the downloaded content against the advertised
// digest.
func (h *FileHandler) ValidateSHA256() error {
	if h.Content == nil {
		return ErrNotDownloaded
	}
	sum := sha256.Sum256(h.Content)
	actual := hex.EncodeToString(sum[:])
	if expected := h.SHA256(); !strings.EqualFold(actual, expected) {
		return ErrChecksumMismatch{Expected: expected, Actual: actual}
	}
	return nil
}
