package catalog

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"
)

type (
	// Kind identifies the container format of an entry, derived from
	// its file extension.
	Kind int

	// MediaEntry is an immutable description of one playable file as it
	// was observed during a library scan. The Key is stable across scans
	// for as long as the file keeps its path relative to the library root.
	MediaEntry struct {
		Key     string
		AbsPath string
		RelPath string
		Name    string
		Size    int64
		ModTime time.Time
		Kind    Kind
	}
)

const (
	MP4 Kind = iota
	MKV
)

func (k Kind) String() string {
	return []string{
		"mp4",
		"mkv",
	}[k]
}

// MimeType returns the Content-Type value served for this container.
func (k Kind) MimeType() string {
	return []string{
		"video/mp4",
		"video/x-matroska",
	}[k]
}

// KindForPath inspects the extension of the provided path (case
// insensitively) and reports whether it names a supported container.
func KindForPath(path string) (Kind, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4":
		return MP4, true
	case ".mkv":
		return MKV, true
	default:
		return MP4, false
	}
}

// KeyForRelPath derives the stable lookup key for a library-relative
// path. The path is slash-normalised first so the key is identical
// across operating systems.
func KeyForRelPath(relPath string) string {
	sum := md5.Sum([]byte(filepath.ToSlash(relPath)))
	return hex.EncodeToString(sum[:])
}

// nameForPath strips the directory and extension from a path, leaving
// the display name of the entry.
func nameForPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
