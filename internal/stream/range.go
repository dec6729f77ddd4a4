package stream

import (
	"fmt"
	"strconv"
	"strings"
)

// maxRangesPerRequest bounds how many sub-ranges a single request may ask
// for. Players probing for scrub previews send a handful at most; anything
// beyond the cap is dropped rather than served.
const maxRangesPerRequest = 32

type (
	// ByteRange is an end-inclusive interval [Start, End] within a
	// resource of Length total bytes, all measured at resolution time.
	// A valid range satisfies 0 <= Start <= End < Length.
	ByteRange struct {
		Start  int64
		End    int64
		Length int64
	}

	OutcomeType int

	// RangeOutcome is the parsers verdict on a Range header: serve the
	// whole resource, serve the listed intervals, or refuse the request
	// because nothing asked for is satisfiable.
	RangeOutcome struct {
		Type   OutcomeType
		Ranges []ByteRange
	}
)

const (
	FullContent OutcomeType = iota
	PartialContent
	Unsatisfiable
)

func (outcome OutcomeType) String() string {
	return []string{
		"FullContent",
		"PartialContent",
		"Unsatisfiable",
	}[outcome]
}

// Size returns the number of bytes the range covers.
func (byteRange ByteRange) Size() int64 {
	return byteRange.End - byteRange.Start + 1
}

// ContentRangeHeader renders the Content-Range value describing this
// interval, e.g. "bytes 0-1023/4096".
func (byteRange ByteRange) ContentRangeHeader() string {
	return fmt.Sprintf("bytes %d-%d/%d", byteRange.Start, byteRange.End, byteRange.Length)
}

// UnsatisfiableContentRange renders the Content-Range value a 416 response
// carries so the client can learn the resource's actual size.
func UnsatisfiableContentRange(length int64) string {
	return fmt.Sprintf("bytes */%d", length)
}

// ParseRange interprets a Range request header against a resource of the
// given length.
//
// The standard forms "bytes=start-end", "bytes=start-" and "bytes=-suffix"
// are accepted, alone or in a comma-separated list. Sub-ranges are
// validated independently: an inverted interval (start > end) or one that
// begins at or beyond the resource length is dropped, an end beyond the
// resource is clamped to the final byte, and a suffix longer than the
// resource covers the whole resource. Valid sub-ranges are returned in the
// order the client sent them; they are never merged or reordered, since
// players probe overlapping and out-of-order intervals deliberately.
//
// An absent or empty header, a range unit other than "bytes", a header in
// which nothing can be parsed at all, or a zero-length resource (for which
// no byte offset can be valid) all degrade to FullContent. Only a header
// that parsed but whose every sub-range was dropped is Unsatisfiable.
func ParseRange(header string, length int64) RangeOutcome {
	header = strings.TrimSpace(header)
	if header == "" || length == 0 {
		return RangeOutcome{Type: FullContent}
	}

	unit, spec, found := strings.Cut(header, "=")
	if !found || !strings.EqualFold(strings.TrimSpace(unit), "bytes") {
		return RangeOutcome{Type: FullContent}
	}

	ranges := make([]ByteRange, 0, 1)
	parsedCount := 0
	for _, piece := range strings.Split(spec, ",") {
		if len(ranges) == maxRangesPerRequest {
			break
		}

		byteRange, ok := parseRangeSpec(strings.TrimSpace(piece), length)
		if !ok {
			continue
		}

		parsedCount++
		if byteRange.Start > byteRange.End || byteRange.Start >= length {
			continue
		}
		if byteRange.End >= length {
			byteRange.End = length - 1
		}

		ranges = append(ranges, byteRange)
	}

	if len(ranges) > 0 {
		return RangeOutcome{Type: PartialContent, Ranges: ranges}
	} else if parsedCount > 0 {
		return RangeOutcome{Type: Unsatisfiable}
	}

	return RangeOutcome{Type: FullContent}
}

// parseRangeSpec extracts one sub-range from its textual form. The result
// has not yet been bounds-checked against the resource length, except for
// the suffix form which resolves to concrete offsets here. Returns false
// when the text is not lexically a byte-range at all.
func parseRangeSpec(piece string, length int64) (ByteRange, bool) {
	first, last, found := strings.Cut(piece, "-")
	if !found {
		return ByteRange{}, false
	}

	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	switch {
	case first == "" && last == "":
		return ByteRange{}, false

	case first == "":
		// Suffix form "-N": the final N bytes of the resource. A suffix
		// longer than the resource covers the whole resource; "-0" falls
		// out as an inverted interval and is dropped by the caller.
		suffix, err := strconv.ParseUint(last, 10, 63)
		if err != nil {
			return ByteRange{}, false
		}
		if int64(suffix) >= length {
			return ByteRange{Start: 0, End: length - 1, Length: length}, true
		}
		return ByteRange{Start: length - int64(suffix), End: length - 1, Length: length}, true

	case last == "":
		start, err := strconv.ParseUint(first, 10, 63)
		if err != nil {
			return ByteRange{}, false
		}
		return ByteRange{Start: int64(start), End: length - 1, Length: length}, true

	default:
		start, err := strconv.ParseUint(first, 10, 63)
		if err != nil {
			return ByteRange{}, false
		}
		end, err := strconv.ParseUint(last, 10, 63)
		if err != nil {
			return ByteRange{}, false
		}
		return ByteRange{Start: int64(start), End: int64(end), Length: length}, true
	}
}
