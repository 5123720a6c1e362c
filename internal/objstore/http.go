// Package objstore accesses the ciphertext object store. Objects are
// referenced only by URL: bytes are streamed range-by-range when the
// transport supports partial reads, otherwise as one sequential stream
// consumed in chunk-sized increments. A presigned S3 backend is provided
// for self-hosted deployments.
package objstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/jsilins/vaultchat/internal/chunker"
)

// HTTPSource implements chunker.ChunkSource over a (presigned) URL.
//
// The first read probes Range support: a 206 response switches the source
// to per-chunk range requests; a 200 response means the server ignored the
// header, so the full body is consumed sequentially instead. Chunked
// decryption always reads in ascending contiguous order, which is exactly
// what the sequential path requires.
type HTTPSource struct {
	url    string
	client *http.Client

	mu     sync.Mutex
	ranged *bool
	seq    *chunker.SequentialSource
	body   io.ReadCloser
}

func NewHTTPSource(client *http.Client, url string) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{url: url, client: client}
}

func (s *HTTPSource) ReadChunk(ctx context.Context, offset, size int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ranged != nil && !*s.ranged {
		return s.seq.ReadChunk(ctx, offset, size)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+size-1))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %d bytes at %d: %w", size, offset, err)
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		defer resp.Body.Close()
		t := true
		s.ranged = &t

		buf := make([]byte, size)
		if _, err := io.ReadFull(resp.Body, buf); err != nil {
			return nil, fmt.Errorf("read range body: %w", err)
		}
		return buf, nil

	case http.StatusOK:
		// server ignored the Range header; keep the body and drain it
		// sequentially from the beginning
		f := false
		s.ranged = &f
		s.body = resp.Body
		s.seq = &chunker.SequentialSource{R: resp.Body}
		return s.seq.ReadChunk(ctx, offset, size)

	default:
		resp.Body.Close()
		return nil, fmt.Errorf("fetch chunk at %d: unexpected status %s", offset, resp.Status)
	}
}

// Close releases the sequential body, if one was opened.
func (s *HTTPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.body != nil {
		err := s.body.Close()
		s.body = nil
		return err
	}
	return nil
}

// UploadPresigned PUTs the content of r to a presigned URL.
func UploadPresigned(ctx context.Context, client *http.Client, url string, r io.Reader, size int64) error {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, r)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if size > 0 {
		req.ContentLength = size
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upload failed: %s; body: %s", resp.Status, string(b))
	}
	return nil
}
