package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// chunkSize bounds how much of a file is held in memory per read. Large
// enough to keep syscall overhead negligible on multi-gigabyte files,
// small enough that hundreds of concurrent streams stay cheap.
const chunkSize = 256 * 1024

// ErrTruncated reports that a file shrank between range resolution and the
// read that tried to serve it. The bytes already written cannot be
// retracted, so the caller must abandon the response rather than pad it.
var ErrTruncated = errors.New("file truncated while streaming")

// FileHandle is a scoped handle on one media file. It is forward-only per
// interval: each CopyRange seeks to its own start offset, and the caller
// is responsible for closing the handle on every exit path.
type FileHandle struct {
	file *os.File
}

// Open acquires a handle on the file at path. The path is expected to have
// been resolved via the catalog immediately beforehand, but the file may
// still vanish in between; callers treat an open failure as the resource
// being gone.
func Open(path string) (*FileHandle, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open media file: %w", err)
	}

	return &FileHandle{file: file}, nil
}

func (handle *FileHandle) Close() error {
	return handle.file.Close()
}

// CopyRange writes exactly the bytes of the given interval to dst, in
// ascending offset order, in bounded chunks. The context is consulted
// between chunks so a cancelled request stops promptly instead of pumping
// the remainder of a multi-gigabyte interval.
//
// If the file has fewer bytes than the interval demands (truncated since
// the range was validated), copying stops where the data ends and
// ErrTruncated is returned; the shortfall is never padded.
func (handle *FileHandle) CopyRange(ctx context.Context, dst io.Writer, byteRange ByteRange) error {
	if _, err := handle.file.Seek(byteRange.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to range start %d: %w", byteRange.Start, err)
	}

	buffer := make([]byte, chunkSize)
	remaining := byteRange.Size()
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		readSize := int64(chunkSize)
		if remaining < readSize {
			readSize = remaining
		}

		n, err := handle.file.Read(buffer[:readSize])
		if n > 0 {
			if _, writeErr := dst.Write(buffer[:n]); writeErr != nil {
				return fmt.Errorf("failed to write chunk: %w", writeErr)
			}
			remaining -= int64(n)
		}

		if errors.Is(err, io.EOF) {
			if remaining > 0 {
				return fmt.Errorf("%w: %d bytes short of range %d-%d", ErrTruncated, remaining, byteRange.Start, byteRange.End)
			}
			return nil
		} else if err != nil {
			return fmt.Errorf("failed to read media file: %w", err)
		}
	}

	return nil
}
