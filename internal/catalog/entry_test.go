package catalog_test

import (
	"testing"

	"github.com/localflix/localflix/internal/catalog"
	"github.com/stretchr/testify/assert"
)

func Test_KindForPath(t *testing.T) {
	tests := []struct {
		summary   string
		path      string
		kind      catalog.Kind
		supported bool
	}{
		{summary: "mp4", path: "movies/some movie.mp4", kind: catalog.MP4, supported: true},
		{summary: "mkv", path: "show.mkv", kind: catalog.MKV, supported: true},
		{summary: "uppercase extension", path: "SHOUTING.MP4", kind: catalog.MP4, supported: true},
		{summary: "mixed case extension", path: "episode.Mkv", kind: catalog.MKV, supported: true},
		{summary: "unsupported extension", path: "notes.txt", supported: false},
		{summary: "no extension", path: "README", supported: false},
		{summary: "supported extension not final", path: "movie.mp4.part", supported: false},
	}

	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			kind, supported := catalog.KindForPath(tt.path)
			assert.Equal(t, tt.supported, supported)
			if tt.supported {
				assert.Equal(t, tt.kind, kind)
			}
		})
	}
}

func Test_KindRendering(t *testing.T) {
	assert.Equal(t, "mp4", catalog.MP4.String())
	assert.Equal(t, "mkv", catalog.MKV.String())
	assert.Equal(t, "video/mp4", catalog.MP4.MimeType())
	assert.Equal(t, "video/x-matroska", catalog.MKV.MimeType())
}

func Test_KeyForRelPath(t *testing.T) {
	// Known MD5 digest (RFC 1321 test vector) pins the key derivation so
	// it cannot silently change and orphan existing client bookmarks.
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", catalog.KeyForRelPath("abc"))

	assert.Equal(t, catalog.KeyForRelPath("movies/foo.mp4"), catalog.KeyForRelPath("movies/foo.mp4"), "keys must be stable across calls")
	assert.NotEqual(t, catalog.KeyForRelPath("movies/foo.mp4"), catalog.KeyForRelPath("movies/bar.mp4"))
	assert.Len(t, catalog.KeyForRelPath("movies/foo.mp4"), 32)
}
