package loader

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/pkg/errors"
)

var httpClient = &http.Client{}

// Fetch reads the bytes at location, which is either an http(s) URL or a
// path on the local filesystem
func Fetch(ctx context.Context, location string) ([]byte, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", location)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "request %s", location)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", location)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("fetch %s: %s", location, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read body of %s", location)
	}
	return data, nil
}
