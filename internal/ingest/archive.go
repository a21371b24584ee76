package ingest

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// File is one entry extracted from an archive.
type File struct {
	Name string
	Data []byte
}

// Archive kinds reported by DetectArchive.
const (
	ArchiveNone  = ""
	ArchiveZip   = "zip"
	ArchiveTar   = "tar"
	ArchiveGzip  = "gzip"
	ArchiveTarGz = "tar.gz"
)

// maxEntryBytes bounds one decompressed archive entry.
const maxEntryBytes = 1 << 30

// DetectArchive sniffs the archive kind from magic bytes, with the name
// distinguishing a gzipped tarball from a plain gzipped file.
func DetectArchive(name string, data []byte) string {
	switch {
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("PK\x03\x04")):
		return ArchiveZip
	case len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b:
		lower := strings.ToLower(name)
		if strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") {
			return ArchiveTarGz
		}
		return ArchiveGzip
	case len(data) >= 265 && bytes.Equal(data[257:262], []byte("ustar")):
		return ArchiveTar
	}
	return ArchiveNone
}

// ExtractArchive unpacks an archive into its regular files. Plain
// gzipped files decompress to a single entry named after the source
// without its .gz suffix.
func ExtractArchive(name string, data []byte) ([]File, error) {
	switch DetectArchive(name, data) {
	case ArchiveZip:
		return extractZip(data)
	case ArchiveTar:
		return extractTar(bytes.NewReader(data))
	case ArchiveTarGz:
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open gzip %s: %w", name, err)
		}
		defer gz.Close()
		return extractTar(gz)
	case ArchiveGzip:
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open gzip %s: %w", name, err)
		}
		defer gz.Close()
		body, err := io.ReadAll(io.LimitReader(gz, maxEntryBytes))
		if err != nil {
			return nil, fmt.Errorf("decompress %s: %w", name, err)
		}
		return []File{{Name: strings.TrimSuffix(path.Base(name), ".gz"), Data: body}}, nil
	}
	return nil, errors.New("not an archive")
}

func extractZip(data []byte) ([]File, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	var out []File
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() || hidden(entry.Name) {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip entry %s: %w", entry.Name, err)
		}
		body, err := io.ReadAll(io.LimitReader(rc, maxEntryBytes))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read zip entry %s: %w", entry.Name, err)
		}
		out = append(out, File{Name: path.Base(entry.Name), Data: body})
	}
	return out, nil
}

func extractTar(r io.Reader) ([]File, error) {
	reader := tar.NewReader(r)
	var out []File
	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}
		if header.Typeflag != tar.TypeReg || hidden(header.Name) {
			continue
		}
		body, err := io.ReadAll(io.LimitReader(reader, maxEntryBytes))
		if err != nil {
			return nil, fmt.Errorf("read tar entry %s: %w", header.Name, err)
		}
		out = append(out, File{Name: path.Base(header.Name), Data: body})
	}
	return out, nil
}

func hidden(name string) bool {
	base := path.Base(name)
	return strings.HasPrefix(base, ".") || strings.HasPrefix(name, "__MACOSX/")
}
