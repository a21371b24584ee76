package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
	"github.com/harmonia-labs/harmonia-go/internal/platform/objectstore"
)

// maxFetchBytes bounds a single download.
const maxFetchBytes = 1 << 30

// fetchConcurrency bounds the parallel transfers of a multi-object
// fetch.
const fetchConcurrency = 4

// Fetcher copies source data into the raw bucket.
type Fetcher struct {
	client *http.Client
	store  objectstore.Store
	bucket string
}

func NewFetcher(store objectstore.Store, bucket string) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: 10 * time.Minute},
		store:  store,
		bucket: bucket,
	}
}

// SourceMetadata names a URL source from what its response reveals.
type SourceMetadata struct {
	Name        string
	Description string
}

// FetchURL downloads one URL into the raw bucket under the run's
// prefix and returns the stored object key along with the source
// metadata read from the response.
func (f *Fetcher) FetchURL(ctx context.Context, runID, rawURL string) (string, SourceMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", SourceMetadata{}, fmt.Errorf("%w: build request for %s: %v", domain.ErrExternalCall, rawURL, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", SourceMetadata{}, fmt.Errorf("%w: fetch %s: %v", domain.ErrExternalCall, rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", SourceMetadata{}, fmt.Errorf("%w: fetch %s: status %d", domain.ErrExternalCall, rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", SourceMetadata{}, fmt.Errorf("%w: fetch %s: %v", domain.ErrExternalCall, rawURL, err)
	}
	meta := metadataFrom(rawURL, resp.Header)
	key := runID + "/" + meta.Name
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := f.store.Put(ctx, f.bucket, key, bytes.NewReader(body), int64(len(body)), contentType); err != nil {
		return "", SourceMetadata{}, fmt.Errorf("store %s: %w", key, err)
	}
	return key, meta, nil
}

// metadataFrom prefers the server's Content-Disposition filename over
// the URL path when naming the source.
func metadataFrom(rawURL string, header http.Header) SourceMetadata {
	meta := SourceMetadata{Name: objectName(rawURL)}
	if disposition := header.Get("Content-Disposition"); disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if filename := path.Base(params["filename"]); filename != "" && filename != "." && filename != "/" {
				meta.Name = filename
			}
		}
	}
	if contentType := header.Get("Content-Type"); contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			meta.Description = mediaType
		}
	}
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Host != "" {
		if meta.Description != "" {
			meta.Description += " from " + parsed.Host
		} else {
			meta.Description = "from " + parsed.Host
		}
	}
	return meta
}

// StoreFiles writes a batch of extracted files under the run's prefix,
// bounded-parallel, and returns their keys in input order.
func (f *Fetcher) StoreFiles(ctx context.Context, runID string, files []File) ([]string, error) {
	keys := make([]string, len(files))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(fetchConcurrency)
	for i, file := range files {
		group.Go(func() error {
			key := runID + "/" + file.Name
			if err := f.store.Put(groupCtx, f.bucket, key, bytes.NewReader(file.Data), int64(len(file.Data)), "application/octet-stream"); err != nil {
				return fmt.Errorf("store %s: %w", key, err)
			}
			keys[i] = key
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Open reads a stored object back.
func (f *Fetcher) Open(ctx context.Context, key string) ([]byte, error) {
	body, err := f.store.Get(ctx, f.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	defer body.Close()
	return io.ReadAll(body)
}

// SourceURLs splits a run's source field into its URLs. Sources are
// whitespace or comma separated; anything without a scheme is treated
// as an already-stored object key.
func SourceURLs(source string) (urls []string, objects []string) {
	for _, field := range strings.FieldsFunc(source, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	}) {
		if parsed, err := url.Parse(field); err == nil && parsed.Scheme != "" && parsed.Host != "" {
			urls = append(urls, field)
			continue
		}
		objects = append(objects, field)
	}
	return urls, objects
}

func objectName(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || path.Base(parsed.Path) == "/" || path.Base(parsed.Path) == "." {
		return "download"
	}
	return path.Base(parsed.Path)
}
