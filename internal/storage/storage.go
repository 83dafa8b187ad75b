// Package storage is the client of the remote file storage that receives the tiles of export jobs.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/forest-guardian/degradation-indicator/internal/backend"
	"github.com/forest-guardian/degradation-indicator/internal/log"

	"go.uber.org/zap"
)

// FileRef identifies one remote file.
type FileRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Storage is what the tile merger consumes from the remote storage service.
type Storage interface {
	List(ctx context.Context, prefix string) ([]FileRef, error)
	Download(ctx context.Context, ref FileRef, dir string) (string, error)
	Delete(ctx context.Context, ref FileRef) error
}

type Client struct {
	requester *backend.Requester
	logTag    string
}

func NewClient(ctx context.Context, cfg backend.Config) (*Client, error) {
	r, err := backend.NewRequester(ctx, cfg, "Storage:")
	if err != nil {
		return nil, err
	}
	return &Client{requester: r, logTag: "Storage:"}, nil
}

// List returns the files whose name starts with prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]FileRef, error) {
	var files []FileRef
	if err := c.requester.JSON(ctx, "GET", "/v1/files?prefix="+url.QueryEscape(prefix), nil, &files); err != nil {
		return nil, fmt.Errorf("failed to list files %s*: %w", prefix, err)
	}
	return files, nil
}

// Download writes the file into dir under its remote name and returns the local path.
// A partial file is removed when the transfer fails.
func (c *Client) Download(ctx context.Context, ref FileRef, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	response, err := c.requester.Do(ctx, "GET", "/v1/files/"+url.PathEscape(ref.ID)+"/content", nil, "")
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", ref.Name, err)
	}
	defer response.Body.Close()

	path := filepath.Join(dir, filepath.Base(ref.Name))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	n, err := io.Copy(f, response.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.Debug(c.logTag+"downloaded", zap.String("file", ref.Name), zap.Int64("bytes", n))
	return path, nil
}

func (c *Client) Delete(ctx context.Context, ref FileRef) error {
	if err := c.requester.JSON(ctx, "DELETE", "/v1/files/"+url.PathEscape(ref.ID), nil, nil); err != nil {
		return fmt.Errorf("failed to delete %s: %w", ref.Name, err)
	}
	return nil
}
