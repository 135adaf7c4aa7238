// Package resource fetches and verifies the external source files a build
// declares, dispatching on the resource's URL scheme.
package resource

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/iohannesarnold/yafpm/internal/pkghash"
)

// Resource is a single named, hash-pinned input fetched into a build root
// before the sandboxed build command runs.
type Resource struct {
	Name string
	Hash pkghash.Hash
	URL  *url.URL
}

// UnrecognizedSchemeError reports a resource URL whose scheme this package
// does not know how to fetch.
type UnrecognizedSchemeError struct {
	Name   string
	Scheme string
}

func (e *UnrecognizedSchemeError) Error() string {
	return fmt.Sprintf("resource %q: unrecognized URL scheme %q", e.Name, e.Scheme)
}

// HTTPStatusError reports a non-200 response from an http(s) fetch.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fetching %s: unexpected HTTP status %d", e.URL, e.StatusCode)
}

// Fetch dispatches on r.URL.Scheme and materializes the resource's bytes as
// destDir/r.Name, after verifying them against r.Hash. The hash is always
// verified before the final write, so a corrupted or tampered download
// never reaches the build root under its declared name.
func Fetch(r Resource, destDir string) error {
	switch r.URL.Scheme {
	case "file":
		return fetchFile(r, destDir)
	case "http", "https":
		return fetchHTTP(r, destDir)
	default:
		return &UnrecognizedSchemeError{Name: r.Name, Scheme: r.URL.Scheme}
	}
}

func fetchFile(r Resource, destDir string) error {
	f, err := os.Open(r.URL.Path)
	if err != nil {
		return fmt.Errorf("resource %q: %w", r.Name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("resource %q: read %s: %w", r.Name, r.URL.Path, err)
	}
	return verifyAndWrite(r, destDir, data)
}

func fetchHTTP(r Resource, destDir string) error {
	resp, err := http.Get(r.URL.String())
	if err != nil {
		return fmt.Errorf("resource %q: %w", r.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &HTTPStatusError{URL: r.URL.String(), StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("resource %q: read body: %w", r.Name, err)
	}
	return verifyAndWrite(r, destDir, data)
}

func verifyAndWrite(r Resource, destDir string, data []byte) error {
	d := pkghash.New()
	if _, err := d.Write(data); err != nil {
		return fmt.Errorf("resource %q: %w", r.Name, err)
	}
	found := d.Sum()
	if found != r.Hash {
		return fmt.Errorf("resource %q: %w", r.Name, &pkghash.MismatchError{Expected: r.Hash, Found: found})
	}

	destPath := filepath.Join(destDir, r.Name)
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return fmt.Errorf("resource %q: write %s: %w", r.Name, destPath, err)
	}
	return nil
}
