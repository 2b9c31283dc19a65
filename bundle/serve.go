package bundle

import (
	"context"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/pkg/errors"
)

// Handler serves the files of a built output directory.
// WebAssembly binaries are served as application/wasm, which
// WebAssembly.instantiateStreaming requires.
func Handler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if path.Ext(r.URL.Path) == ".wasm" {
			w.Header().Set("Content-Type", "application/wasm")
		}
		w.Header().Set("Cache-Control", "no-cache")
		bundleLogger.Debug("serving", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
		files.ServeHTTP(w, r)
	})
}

// Serve serves dir on addr until ctx is cancelled
func Serve(ctx context.Context, dir, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(dir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		bundleLogger.Info("serving bundle", "address", displayURL(addr), "dir", dir)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "could not shut down server")
		}
		return nil
	}
}

// displayURL is where a browser on this machine reaches a server listening on addr
func displayURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || net.ParseIP(host).IsUnspecified() {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
