package chunker

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// ReaderAtSource adapts an io.ReaderAt (local ciphertext file, buffered
// blob) to ChunkSource. Supports arbitrary-order reads.
type ReaderAtSource struct {
	R io.ReaderAt
}

func (s *ReaderAtSource) ReadChunk(ctx context.Context, offset, size int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(s.R, offset, size), buf); err != nil {
		return nil, fmt.Errorf("read at %d: %w", offset, err)
	}
	return buf, nil
}

// SequentialSource adapts a one-shot forward stream (a non-ranged HTTP
// body) to ChunkSource. Reads must arrive in ascending, contiguous offset
// order, which chunked decryption guarantees.
type SequentialSource struct {
	R io.Reader

	mu  sync.Mutex
	pos int64
}

func (s *SequentialSource) ReadChunk(ctx context.Context, offset, size int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if offset != s.pos {
		return nil, fmt.Errorf("sequential source at %d, chunk wants %d", s.pos, offset)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(s.R, buf); err != nil {
		return nil, fmt.Errorf("read %d bytes at %d: %w", size, offset, err)
	}
	s.pos += size

	return buf, nil
}
