package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "module.wasm")
	require.NoError(t, os.WriteFile(p, []byte{0x00, 0x61, 0x73, 0x6d}, 0o644))

	data, err := Fetch(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x61, 0x73, 0x6d}, data)
}

func TestFetchMissingFile(t *testing.T) {
	_, err := Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.wasm"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFetchHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pkg/module.wasm" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("binary"))
	}))
	defer srv.Close()

	data, err := Fetch(context.Background(), srv.URL+"/pkg/module.wasm")
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))

	_, err = Fetch(context.Background(), srv.URL+"/missing.wasm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}
