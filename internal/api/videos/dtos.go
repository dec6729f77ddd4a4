package videos

import (
	"time"

	"github.com/labstack/gommon/bytes"
	"github.com/localflix/localflix/internal/catalog"
)

type (
	// Dto is the outward-facing shape of a catalog entry. The absolute
	// path of the underlying file is deliberately absent: callers address
	// entries by key alone.
	Dto struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Format    string    `json:"format"`
		Size      int64     `json:"size"`
		SizeHuman string    `json:"size_human"`
		Modified  time.Time `json:"modified"`
	}

	ListDto struct {
		Videos []Dto `json:"videos"`
		Count  int   `json:"count"`
	}

	StatsDto struct {
		TotalVideos   int            `json:"total_videos"`
		Formats       map[string]int `json:"formats"`
		TotalBytes    int64          `json:"total_bytes"`
		ActiveStreams int            `json:"active_streams"`
		LastScan      time.Time      `json:"last_scan"`
	}
)

func NewDto(entry catalog.MediaEntry) Dto {
	return Dto{
		ID:        entry.Key,
		Name:      entry.Name,
		Format:    entry.Kind.String(),
		Size:      entry.Size,
		SizeHuman: bytes.Format(entry.Size),
		Modified:  entry.ModTime,
	}
}

func NewListDto(entries []catalog.MediaEntry) ListDto {
	dtos := make([]Dto, len(entries))
	for k, v := range entries {
		dtos[k] = NewDto(v)
	}

	return ListDto{Videos: dtos, Count: len(dtos)}
}

func NewStatsDto(stats catalog.LibraryStats, activeStreams int) StatsDto {
	return StatsDto{
		TotalVideos:   stats.TotalVideos,
		Formats:       stats.Formats,
		TotalBytes:    stats.TotalBytes,
		ActiveStreams: activeStreams,
		LastScan:      stats.ScannedAt,
	}
}
