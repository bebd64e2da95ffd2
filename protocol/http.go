package protocol

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// HTTP implements Adapter over net/http directly, rather than adopting
// an unlisted third-party client library (see DESIGN.md).
type HTTP struct {
	opts   Options
	client *http.Client
	resp   *http.Response
	flag   TimeoutFlag
}

// Connect builds the http.Client for this host; HTTP itself is
// connectionless at this layer, so Connect just prepares the transport.
func (a *HTTP) Connect(ctx context.Context, opts Options) error {
	a.opts = opts
	transport := &http.Transport{}
	if opts.TLS {
		transport.TLSClientConfig = &tls.Config{ServerName: opts.Host}
	}
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return fmt.Errorf("http: proxy %s: %w", opts.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	a.client = &http.Client{
		Transport: transport,
		Timeout:   opts.TransferTimeout,
	}
	return nil
}

// Auth is a no-op for plain HTTP GET/PUT; basic auth is applied per
// request in Get/Put using opts.User/opts.Pass.
func (a *HTTP) Auth(ctx context.Context) error { return nil }

// Get issues a GET for url and returns the streamed response body.
func (a *HTTP) Get(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	if a.opts.User != "" {
		req.SetBasicAuth(a.opts.User, a.opts.Pass)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		a.flag = classifyTimeout(err)
		return nil, 0, fmt.Errorf("http: get %s: %w", url, err)
	}
	if resp.StatusCode/100 != 2 {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("http: get %s: status %s", url, resp.Status)
	}
	a.resp = resp
	return resp.Body, resp.ContentLength, nil
}

// Put issues a PUT of r to url.
func (a *HTTP) Put(ctx context.Context, url string, r io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, r)
	if err != nil {
		return err
	}
	req.ContentLength = size
	if a.opts.User != "" {
		req.SetBasicAuth(a.opts.User, a.opts.Pass)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		a.flag = classifyTimeout(err)
		return fmt.Errorf("http: put %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("http: put %s: status %s", url, resp.Status)
	}
	return nil
}

// StoreFile implements FileStorer via a single PUT; name is the target
// URL (or server-relative path the caller has already made absolute).
func (a *HTTP) StoreFile(ctx context.Context, name string, data []byte) error {
	if a.opts.Simulation {
		return nil
	}
	return a.Put(ctx, name, bytes.NewReader(data), int64(len(data)))
}

// Read reads from the current GET response body.
func (a *HTTP) Read(buf []byte) (int, error) {
	if a.resp == nil {
		return 0, fmt.Errorf("http: no active response")
	}
	n, err := a.resp.Body.Read(buf)
	a.flag = classifyTimeout(err)
	return n, err
}

// Write is unsupported directly; uploads go through Put, which needs an
// io.Reader up front.
func (a *HTTP) Write(buf []byte) (int, error) {
	return 0, fmt.Errorf("http: use Put for uploads")
}

// Quit closes the current response body, if any, and idles the client's
// connection pool.
func (a *HTTP) Quit(ctx context.Context) error {
	var err error
	if a.resp != nil {
		err = a.resp.Body.Close()
		a.resp = nil
	}
	if a.client != nil {
		a.client.CloseIdleConnections()
	}
	return err
}

// TimeoutFlag reports the last classified I/O outcome.
func (a *HTTP) TimeoutFlag() TimeoutFlag { return a.flag }
