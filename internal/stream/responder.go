package stream

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"github.com/google/uuid"
	"github.com/localflix/localflix/internal/catalog"
	"github.com/localflix/localflix/pkg/logger"
)

var log = logger.Get("Stream")

type (
	// Resolver is the slice of the catalog the responder depends on: a
	// point-in-time lookup that re-checks the file system so long-lived
	// players cannot act on stale sizes.
	Resolver interface {
		Resolve(key string) (catalog.MediaEntry, error)
	}

	// Responder drives a playback request from key to response body. Per
	// request it resolves the entry, interprets the Range header against
	// the entry's current size, and emits one of: the full resource (200),
	// a single interval (206), a multipart/byteranges body (206), an empty
	// 416 carrying the resource length, or a 404.
	//
	// Request-local failures never escape; a failure after the body has
	// begun streaming is logged and silently terminates the connection,
	// as HTTP offers no mid-response recovery.
	Responder struct {
		resolver Resolver
	}
)

func NewResponder(resolver Resolver) *Responder {
	return &Responder{resolver: resolver}
}

// Serve answers one playback request for the entry named by key. HEAD
// requests receive the full-content header set and no body; any Range
// header on a HEAD is ignored, as players probe HEAD only for the size
// and seekability of the resource.
func (responder *Responder) Serve(w http.ResponseWriter, r *http.Request, key string) {
	entry, err := responder.resolver.Resolve(key)
	if err != nil {
		http.Error(w, "media not found", http.StatusNotFound)
		return
	}

	if r.Method == http.MethodHead {
		responder.serveFullContent(w, r, entry)
		return
	}

	outcome := ParseRange(r.Header.Get("Range"), entry.Size)
	switch outcome.Type {
	case Unsatisfiable:
		responder.serveUnsatisfiable(w, entry)
	case PartialContent:
		if len(outcome.Ranges) == 1 {
			responder.serveSingleRange(w, r, entry, outcome.Ranges[0])
		} else {
			responder.serveMultiRange(w, r, entry, outcome.Ranges)
		}
	default:
		responder.serveFullContent(w, r, entry)
	}
}

func (responder *Responder) serveFullContent(w http.ResponseWriter, r *http.Request, entry catalog.MediaEntry) {
	handle, ok := responder.openEntry(w, entry)
	if !ok {
		return
	}
	defer handle.Close()

	writeEntryHeaders(w.Header(), entry)
	w.Header().Set("Content-Length", strconv.FormatInt(entry.Size, 10))
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead || entry.Size == 0 {
		return
	}

	whole := ByteRange{Start: 0, End: entry.Size - 1, Length: entry.Size}
	if err := handle.CopyRange(r.Context(), w, whole); err != nil {
		logStreamFailure(entry, err)
	}
}

func (responder *Responder) serveSingleRange(w http.ResponseWriter, r *http.Request, entry catalog.MediaEntry, byteRange ByteRange) {
	handle, ok := responder.openEntry(w, entry)
	if !ok {
		return
	}
	defer handle.Close()

	writeEntryHeaders(w.Header(), entry)
	w.Header().Set("Content-Range", byteRange.ContentRangeHeader())
	w.Header().Set("Content-Length", strconv.FormatInt(byteRange.Size(), 10))
	w.WriteHeader(http.StatusPartialContent)

	if err := handle.CopyRange(r.Context(), w, byteRange); err != nil {
		logStreamFailure(entry, err)
	}
}

// serveMultiRange frames the requested intervals as a multipart/byteranges
// body: each part carries its own Content-Type and Content-Range header,
// parts appear in the order the client asked for them, and the boundary
// token is unique to this response. The Content-Length is computed up
// front so clients can detect a truncated body.
func (responder *Responder) serveMultiRange(w http.ResponseWriter, r *http.Request, entry catalog.MediaEntry, ranges []ByteRange) {
	handle, ok := responder.openEntry(w, entry)
	if !ok {
		return
	}
	defer handle.Close()

	boundary := uuid.New().String()
	writeEntryHeaders(w.Header(), entry)
	w.Header().Set("Content-Type", fmt.Sprintf("multipart/byteranges; boundary=%s", boundary))
	w.Header().Set("Content-Length", strconv.FormatInt(multipartBodyLength(boundary, entry.Kind.MimeType(), ranges), 10))
	w.WriteHeader(http.StatusPartialContent)

	multipartWriter := multipart.NewWriter(w)
	if err := multipartWriter.SetBoundary(boundary); err != nil {
		logStreamFailure(entry, err)
		return
	}

	for _, byteRange := range ranges {
		part, err := multipartWriter.CreatePart(rangePartHeader(entry.Kind.MimeType(), byteRange))
		if err != nil {
			logStreamFailure(entry, err)
			return
		}

		if err := handle.CopyRange(r.Context(), part, byteRange); err != nil {
			logStreamFailure(entry, err)
			return
		}
	}

	if err := multipartWriter.Close(); err != nil {
		logStreamFailure(entry, err)
	}
}

func (responder *Responder) serveUnsatisfiable(w http.ResponseWriter, entry catalog.MediaEntry) {
	w.Header().Set("Content-Range", UnsatisfiableContentRange(entry.Size))
	w.Header().Set("Accept-Ranges", "bytes")
	w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
}

// openEntry acquires the file handle backing an entry. The entry was
// resolved moments ago, but the file can vanish in between; as no response
// headers have been written yet, that still surfaces as a 404.
func (responder *Responder) openEntry(w http.ResponseWriter, entry catalog.MediaEntry) (*FileHandle, bool) {
	handle, err := Open(entry.AbsPath)
	if err != nil {
		http.Error(w, "media not found", http.StatusNotFound)
		return nil, false
	}

	return handle, true
}

func writeEntryHeaders(header http.Header, entry catalog.MediaEntry) {
	header.Set("Content-Type", entry.Kind.MimeType())
	header.Set("Accept-Ranges", "bytes")
	header.Set("Last-Modified", entry.ModTime.UTC().Format(http.TimeFormat))
}

func rangePartHeader(mimeType string, byteRange ByteRange) textproto.MIMEHeader {
	return textproto.MIMEHeader{
		"Content-Type":  {mimeType},
		"Content-Range": {byteRange.ContentRangeHeader()},
	}
}

// multipartBodyLength measures the exact body size of a multipart response
// by dry-running the same multipart writer over a byte counter with the
// payloads left out, then adding the interval sizes back in.
func multipartBodyLength(boundary string, mimeType string, ranges []ByteRange) int64 {
	var counter countingWriter
	skeleton := multipart.NewWriter(&counter)

	// None of these can fail against a counting writer with a
	// freshly-generated boundary.
	_ = skeleton.SetBoundary(boundary)
	payloadTotal := int64(0)
	for _, byteRange := range ranges {
		_, _ = skeleton.CreatePart(rangePartHeader(mimeType, byteRange))
		payloadTotal += byteRange.Size()
	}
	_ = skeleton.Close()

	return int64(counter) + payloadTotal
}

type countingWriter int64

func (counter *countingWriter) Write(p []byte) (int, error) {
	*counter += countingWriter(len(p))
	return len(p), nil
}

func logStreamFailure(entry catalog.MediaEntry, err error) {
	if errors.Is(err, context.Canceled) {
		log.Emit(logger.DEBUG, "Stream of entry '%s' cancelled by client\n", entry.Key)
		return
	}

	log.Emit(logger.ERROR, "Stream of entry '%s' failed mid-response: %v\n", entry.Key, err)
}
