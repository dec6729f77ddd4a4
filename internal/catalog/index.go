package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned when a key does not exist in the index, or when
// the file it referred to has disappeared (or stopped being a regular file)
// since the last scan.
var ErrNotFound = errors.New("media entry not found")

type (
	SortField string
	SortOrder string

	// Index is an immutable snapshot of the library produced by a single
	// scan. Lookups against an Index never mutate it; a fresh Index is
	// built by each scan and swapped in by the owning service.
	Index struct {
		root      string
		entries   map[string]MediaEntry
		scannedAt time.Time
	}

	// LibraryStats summarises an Index for the stats endpoint.
	LibraryStats struct {
		TotalVideos int
		Formats     map[string]int
		TotalBytes  int64
		ScannedAt   time.Time
	}
)

const (
	SortName SortField = "name"
	SortDate SortField = "date"
	SortSize SortField = "size"

	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// ParseSortField validates a user-supplied sort column, defaulting to
// SortName when the input is empty.
func ParseSortField(raw string) (SortField, error) {
	switch SortField(raw) {
	case "":
		return SortName, nil
	case SortName, SortDate, SortSize:
		return SortField(raw), nil
	default:
		return SortName, fmt.Errorf("unknown sort field '%s'", raw)
	}
}

// ParseSortOrder validates a user-supplied sort direction, defaulting to
// OrderAsc when the input is empty.
func ParseSortOrder(raw string) (SortOrder, error) {
	switch SortOrder(raw) {
	case "":
		return OrderAsc, nil
	case OrderAsc, OrderDesc:
		return SortOrder(raw), nil
	default:
		return OrderAsc, fmt.Errorf("unknown sort order '%s'", raw)
	}
}

// NewIndex builds a snapshot from the entries produced by a scan of root.
// Duplicate keys (which would require an MD5 collision between relative
// paths) resolve to the last entry seen.
func NewIndex(root string, entries []MediaEntry) *Index {
	lookup := make(map[string]MediaEntry, len(entries))
	for _, entry := range entries {
		lookup[entry.Key] = entry
	}

	return &Index{
		root:      root,
		entries:   lookup,
		scannedAt: time.Now(),
	}
}

func (index *Index) Len() int             { return len(index.entries) }
func (index *Index) Root() string         { return index.root }
func (index *Index) ScannedAt() time.Time { return index.scannedAt }

// Get returns the entry exactly as it was recorded at scan time, without
// consulting the file system.
func (index *Index) Get(key string) (MediaEntry, bool) {
	entry, ok := index.entries[key]
	return entry, ok
}

// Resolve looks up a key and re-stats the underlying file so the returned
// entry carries the size and modtime of the file as it exists right now,
// not as it existed when the snapshot was taken. ErrNotFound is returned
// when the key is unknown, or when the file has been removed or replaced
// by something that is not a regular file.
func (index *Index) Resolve(key string) (MediaEntry, error) {
	entry, ok := index.entries[key]
	if !ok {
		return MediaEntry{}, ErrNotFound
	}

	info, err := os.Stat(entry.AbsPath)
	if err != nil || !info.Mode().IsRegular() {
		return MediaEntry{}, ErrNotFound
	}

	entry.Size = info.Size()
	entry.ModTime = info.ModTime()
	return entry, nil
}

// List returns the indexed entries ordered by the requested field and
// direction. Name ordering is case insensitive; ties fall back to the
// relative path so the output is deterministic.
func (index *Index) List(field SortField, order SortOrder) []MediaEntry {
	listing := make([]MediaEntry, 0, len(index.entries))
	for _, entry := range index.entries {
		listing = append(listing, entry)
	}

	sort.Slice(listing, func(i, j int) bool {
		a, b := listing[i], listing[j]
		if order == OrderDesc {
			a, b = b, a
		}

		switch field {
		case SortDate:
			if !a.ModTime.Equal(b.ModTime) {
				return a.ModTime.Before(b.ModTime)
			}
		case SortSize:
			if a.Size != b.Size {
				return a.Size < b.Size
			}
		default:
			an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
			if an != bn {
				return an < bn
			}
		}

		return a.RelPath < b.RelPath
	})

	return listing
}

// Stats tallies the snapshot for the stats endpoint.
func (index *Index) Stats() LibraryStats {
	stats := LibraryStats{
		TotalVideos: len(index.entries),
		Formats:     make(map[string]int),
		ScannedAt:   index.scannedAt,
	}

	for _, entry := range index.entries {
		stats.Formats[entry.Kind.String()]++
		stats.TotalBytes += entry.Size
	}

	return stats
}
