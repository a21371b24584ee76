package ingest

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/harmonia-labs/harmonia-go/internal/platform/objectstore"
)

func TestReadTableSniffsDelimiter(t *testing.T) {
	table, format, err := ReadTable(strings.NewReader("CHR\tBP\tP\n1\t1000\t0.05\n"), "stats.txt")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if format != FormatTSV {
		t.Fatalf("format = %q, want tsv", format)
	}
	if len(table.Columns) != 3 || table.Columns[1] != "BP" {
		t.Fatalf("columns = %v", table.Columns)
	}
	if len(table.Rows) != 1 || table.Rows[0][2] != "0.05" {
		t.Fatalf("rows = %v", table.Rows)
	}

	table, format, err = ReadTable(strings.NewReader("a,b\n1,2\n3\n"), "data.csv")
	if err != nil {
		t.Fatalf("ReadTable csv: %v", err)
	}
	if format != FormatCSV {
		t.Fatalf("format = %q, want csv", format)
	}
	// Short records pad to header width.
	if len(table.Rows[1]) != 2 || table.Rows[1][1] != "" {
		t.Fatalf("padded row = %v", table.Rows[1])
	}
}

func TestFileStem(t *testing.T) {
	if got := FileStem("run-1/gwas_height.tsv"); got != "gwas_height" {
		t.Fatalf("FileStem = %q", got)
	}
}

func TestSourceURLs(t *testing.T) {
	urls, objects := SourceURLs("https://example.org/a.csv, uploads/b.tsv\nhttp://example.org/c.zip")
	if len(urls) != 2 || urls[1] != "http://example.org/c.zip" {
		t.Fatalf("urls = %v", urls)
	}
	if len(objects) != 1 || objects[0] != "uploads/b.tsv" {
		t.Fatalf("objects = %v", objects)
	}
}

func TestDetectAndExtractZip(t *testing.T) {
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	entry, err := writer.Create("data/stats.csv")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := entry.Write([]byte("a,b\n1,2\n")); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	if kind := DetectArchive("bundle.zip", buf.Bytes()); kind != ArchiveZip {
		t.Fatalf("kind = %q, want zip", kind)
	}
	files, err := ExtractArchive("bundle.zip", buf.Bytes())
	if err != nil {
		t.Fatalf("ExtractArchive: %v", err)
	}
	if len(files) != 1 || files[0].Name != "stats.csv" {
		t.Fatalf("files = %+v", files)
	}
}

func TestDetectAndExtractTarGz(t *testing.T) {
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	content := []byte("x\ty\n1\t2\n")
	if err := tw.WriteHeader(&tar.Header{Name: "nested/values.tsv", Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatalf("tar header: %v", err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatalf("tar write: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}

	var gzBuf bytes.Buffer
	gz := gzip.NewWriter(&gzBuf)
	if _, err := gz.Write(tarBuf.Bytes()); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	if kind := DetectArchive("bundle.tar.gz", gzBuf.Bytes()); kind != ArchiveTarGz {
		t.Fatalf("kind = %q, want tar.gz", kind)
	}
	files, err := ExtractArchive("bundle.tar.gz", gzBuf.Bytes())
	if err != nil {
		t.Fatalf("ExtractArchive: %v", err)
	}
	if len(files) != 1 || files[0].Name != "values.tsv" || string(files[0].Data) != string(content) {
		t.Fatalf("files = %+v", files)
	}
}

func TestExtractGzipSingleFile(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte("a,b\n")); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	files, err := ExtractArchive("stats.csv.gz", buf.Bytes())
	if err != nil {
		t.Fatalf("ExtractArchive: %v", err)
	}
	if len(files) != 1 || files[0].Name != "stats.csv" {
		t.Fatalf("files = %+v", files)
	}
}

func TestMetadataFromResponseHeaders(t *testing.T) {
	header := http.Header{}
	header.Set("Content-Disposition", `attachment; filename="gwas_height.tsv"`)
	header.Set("Content-Type", "text/tab-separated-values; charset=utf-8")

	meta := metadataFrom("https://example.org/downloads/export?id=7", header)
	if meta.Name != "gwas_height.tsv" {
		t.Fatalf("name = %q", meta.Name)
	}
	if meta.Description != "text/tab-separated-values from example.org" {
		t.Fatalf("description = %q", meta.Description)
	}

	meta = metadataFrom("https://example.org/stats.csv", http.Header{})
	if meta.Name != "stats.csv" || meta.Description != "from example.org" {
		t.Fatalf("fallback meta = %+v", meta)
	}
}

func TestStoreFilesKeepsOrder(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemoryStore()
	fetcher := NewFetcher(store, "raw-data")

	files := []File{
		{Name: "a.csv", Data: []byte("a")},
		{Name: "b.csv", Data: []byte("b")},
		{Name: "c.csv", Data: []byte("c")},
	}
	keys, err := fetcher.StoreFiles(ctx, "run-1", files)
	if err != nil {
		t.Fatalf("StoreFiles: %v", err)
	}
	if len(keys) != 3 || keys[0] != "run-1/a.csv" || keys[2] != "run-1/c.csv" {
		t.Fatalf("keys = %v", keys)
	}
	body, err := fetcher.Open(ctx, "run-1/b.csv")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(body) != "b" {
		t.Fatalf("body = %q", body)
	}
}
