package model

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// fetcher downloads model artifacts into the on-disk cache. Files
// already present in the cache are reused without touching the network.
type fetcher struct {
	cacheDir string
	client   *http.Client
}

// cachePath flattens a model ID into a file name safe for the cache dir.
func (f *fetcher) cachePath(modelID, suffix string) string {
	stem := strings.NewReplacer("/", "_", ":", "_").Replace(modelID)
	return filepath.Join(f.cacheDir, stem+suffix)
}

// fetch downloads url into dest unless dest already exists. Progress is
// reported through onProgress as bytes arrive. The download goes to a
// temp file first and is renamed into place only when complete, so a
// partial download never poisons the cache.
func (f *fetcher) fetch(ctx context.Context, url, dest string, onProgress func(loaded, total int64)) error {
	if _, err := os.Stat(dest); err == nil {
		return nil
	}

	if err := os.MkdirAll(f.cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create model cache dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download of %s failed with status %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(f.cacheDir, filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	total := resp.ContentLength
	var loaded int64
	buf := make([]byte, 256*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := tmp.Write(buf[:n]); err != nil {
				return fmt.Errorf("failed to write model file: %w", err)
			}
			loaded += int64(n)
			if onProgress != nil {
				onProgress(loaded, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("download of %s interrupted: %w", url, readErr)
		}
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to move model file into cache: %w", err)
	}
	return nil
}
