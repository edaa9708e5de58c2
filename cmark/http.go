package cmark

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"pkt.systems/prettymd"
)

// HTTPFormatRequest configures HTTPFormat.
type HTTPFormatRequest struct {
	URL     string
	Client  *http.Client
	Writer  io.Writer
	Options []prettymd.Option
}

// HTTPFormat fetches Markdown over HTTP(S) and writes it prettified.
func HTTPFormat(ctx context.Context, req HTTPFormatRequest) error {
	if req.URL == "" {
		return fmt.Errorf("format http: URL is required")
	}
	if req.Writer == nil {
		return fmt.Errorf("format http: Writer is nil")
	}
	body, err := Fetch(ctx, req.Client, req.URL)
	if err != nil {
		return fmt.Errorf("format http: %w", err)
	}
	defer body.Close()
	return Format(FormatRequest{
		Reader:  body,
		Writer:  req.Writer,
		Options: req.Options,
	})
}

// Fetch GETs an http or https URL with client (http.DefaultClient when nil)
// and returns the response body. Non-2xx responses are errors.
func Fetch(ctx context.Context, client *http.Client, rawURL string) (io.ReadCloser, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if client == nil {
		client = http.DefaultClient
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if httpReq.URL.Scheme != "http" && httpReq.URL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", httpReq.URL.Scheme)
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s: status %s", rawURL, resp.Status)
	}
	return resp.Body, nil
}
