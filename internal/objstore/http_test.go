package objstore

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blob(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func TestHTTPSource_RangedServer(t *testing.T) {
	data := blob(4096)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "blob", time.Now(), bytes.NewReader(data))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.Client(), srv.URL)
	defer src.Close()
	ctx := context.Background()

	got, err := src.ReadChunk(ctx, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, data[:1000], got)

	got, err = src.ReadChunk(ctx, 1000, 2000)
	require.NoError(t, err)
	assert.Equal(t, data[1000:3000], got)

	got, err = src.ReadChunk(ctx, 3000, 1096)
	require.NoError(t, err)
	assert.Equal(t, data[3000:], got)
}

func TestHTTPSource_NonRangedServerFallsBackToSequential(t *testing.T) {
	data := blob(3000)
	requests := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		// ignore Range entirely
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.Client(), srv.URL)
	defer src.Close()
	ctx := context.Background()

	got, err := src.ReadChunk(ctx, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, data[:1000], got)

	got, err = src.ReadChunk(ctx, 1000, 2000)
	require.NoError(t, err)
	assert.Equal(t, data[1000:], got)

	assert.Equal(t, 1, requests, "sequential fallback must reuse one stream")
}

func TestHTTPSource_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.Client(), srv.URL)
	_, err := src.ReadChunk(context.Background(), 0, 10)
	assert.Error(t, err)
}

func TestUploadPresigned(t *testing.T) {
	var received []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		received, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	payload := []byte("ciphertext bytes")
	err := UploadPresigned(context.Background(), srv.Client(), srv.URL, bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)
	assert.Equal(t, payload, received)
}

func TestUploadPresigned_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	err := UploadPresigned(context.Background(), srv.Client(), srv.URL, strings.NewReader("x"), 1)
	assert.Error(t, err)
}
