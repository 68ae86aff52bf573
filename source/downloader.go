package source

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/giygas/dpd-api/dpdparser"
	"github.com/giygas/dpd-api/logging"
)

// maxEntrySize bounds a single extracted file.
const maxEntrySize = 2 << 30

// Downloader fetches the extract archive and unpacks the extract files.
type Downloader struct {
	exportURL string
	client    *http.Client
}

func NewDownloader(exportURL string) *Downloader {
	return &Downloader{
		exportURL: exportURL,
		client:    &http.Client{Timeout: 10 * time.Minute},
	}
}

// Fetch downloads the archive and writes every known extract file into dir.
// A known file missing from the archive is an error.
func (d *Downloader) Fetch(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	archive, err := os.CreateTemp("", "dpd-*.zip")
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	defer func() {
		archive.Close()
		if err := os.Remove(archive.Name()); err != nil {
			logging.Warn("Failed to remove temp archive", "path", archive.Name(), "error", err)
		}
	}()

	size, err := d.download(ctx, archive)
	if err != nil {
		return err
	}
	logging.Info("Extract archive downloaded", "url", d.exportURL, "bytes", size)

	return Unpack(archive, size, dir)
}

func (d *Downloader) download(ctx context.Context, dst io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.exportURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download %s: %w", d.exportURL, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download of %s returned status %d", d.exportURL, resp.StatusCode)
	}

	n, err := io.Copy(dst, resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read archive: %w", err)
	}
	return n, nil
}

// Unpack extracts the known extract files of a zip archive into dir. Entries
// are matched on their base name so nested paths cannot escape dir.
func Unpack(r io.ReaderAt, size int64, dir string) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}

	wanted := make(map[string]bool, len(dpdparser.AllKinds))
	for _, kind := range dpdparser.AllKinds {
		wanted[kind.FileName] = true
	}

	found := make(map[string]bool)
	for _, f := range zr.File {
		name := strings.ToLower(filepath.Base(f.Name))
		if f.FileInfo().IsDir() || !wanted[name] {
			continue
		}
		if err := extract(f, filepath.Join(dir, name)); err != nil {
			return err
		}
		found[name] = true
		logging.Debug(fmt.Sprintf("%s extracted", name), "bytes", f.UncompressedSize64)
	}

	for name := range wanted {
		if !found[name] {
			return fmt.Errorf("archive is missing %s", name)
		}
	}
	return nil
}

func extract(f *zip.File, path string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s in archive: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	n, err := io.Copy(out, io.LimitReader(rc, maxEntrySize+1))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if n > maxEntrySize {
		return fmt.Errorf("%s exceeds %d bytes", f.Name, int64(maxEntrySize))
	}
	return nil
}
