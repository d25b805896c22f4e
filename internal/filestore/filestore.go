// Package filestore downloads and caches test-case content addressed by its
// sha256. Files are fetched in the background as soon as they are scheduled,
// so the pipeline usually finds them ready by the time a test needs them.
package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/puzpuzpuz/xsync/v3"
)

type entry struct {
	url  string
	done chan struct{}
	err  error
}

type FileStore struct {
	fileDir string
	tmpDir  string

	downloadFunc func(url, path string) error

	queue   chan string
	entries *xsync.MapOf[string, *entry]
}

// New creates a file store persisting files under fileDir with tmpDir as the
// staging area for in-flight downloads.
func New(fileDir, tmpDir string) *FileStore {
	fs := &FileStore{
		fileDir:      fileDir,
		tmpDir:       tmpDir,
		downloadFunc: httpDownload,
		queue:        make(chan string, 10000),
		entries:      xsync.NewMapOf[string, *entry](),
	}
	if err := os.MkdirAll(fileDir, 0755); err != nil {
		panic(fmt.Errorf("failed to create file store directory: %w", err))
	}
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		panic(fmt.Errorf("failed to create tmp directory: %w", err))
	}
	return fs
}

// SetDownloadFunc replaces the HTTP fetcher; tests use it to avoid the
// network.
func (fs *FileStore) SetDownloadFunc(f func(url, path string) error) {
	fs.downloadFunc = f
}

// Start processes scheduled downloads until the store is no longer used.
// Run it in a goroutine.
func (fs *FileStore) Start() {
	for sha := range fs.queue {
		e, ok := fs.entries.Load(sha)
		if !ok {
			continue
		}
		e.err = fs.fetch(sha, e.url)
		if e.err != nil {
			// Evict so a later Schedule retries instead of serving the
			// stale failure forever. Awaiters already holding the entry
			// still see the error.
			fs.entries.Delete(sha)
		}
		close(e.done)
	}
}

// Schedule queues the content at url for download unless the sha is already
// cached or in flight.
func (fs *FileStore) Schedule(sha string, url string) error {
	e := &entry{url: url, done: make(chan struct{})}
	if _, loaded := fs.entries.LoadOrStore(sha, e); loaded {
		return nil // already scheduled
	}
	fs.queue <- sha
	return nil
}

// Await blocks until the download for sha finishes and returns the verified
// content. Content that was never scheduled is an error.
func (fs *FileStore) Await(ctx context.Context, sha string) ([]byte, error) {
	e, ok := fs.entries.Load(sha)
	if !ok {
		return nil, fmt.Errorf("file %s has not been scheduled for download", sha)
	}
	select {
	case <-e.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, e.err
	}
	return os.ReadFile(filepath.Join(fs.fileDir, sha))
}

func (fs *FileStore) fetch(sha, url string) error {
	finalPath := filepath.Join(fs.fileDir, sha)
	if _, err := os.Stat(finalPath); err == nil {
		return nil // already cached from an earlier run
	}

	tmpPath := filepath.Join(fs.tmpDir, sha)
	if err := fs.downloadFunc(url, tmpPath); err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer os.Remove(tmpPath)

	if err := verifySha256(tmpPath, sha); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("failed to move %s into file store: %w", sha, err)
	}
	return nil
}

func verifySha256(path, expected string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if got != expected {
		return fmt.Errorf("integrity mismatch: got sha256 %s, want %s", got, expected)
	}
	return nil
}

// httpDownload fetches url to path, transparently decompressing zstd
// payloads.
func httpDownload(url, path string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	var src io.Reader = resp.Body
	if resp.Header.Get("Content-Type") == "application/zstd" ||
		strings.HasSuffix(url, ".zst") {
		d, err := zstd.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer d.Close()
		src = d
	}

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
