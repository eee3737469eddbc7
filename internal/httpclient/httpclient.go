package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"apidash/internal/deps"
	"apidash/internal/input"
	"apidash/internal/model"
)

type Result struct {
	StatusCode int
	Status     string
	Elapsed    time.Duration
	Headers    map[string]string
	Body       []byte
}

type RequestSpec struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Lookup resolves a dependency value.
type Lookup func(model.DependencyKey) (any, bool)

// Client executes a built request.
type Client interface {
	Do(ctx context.Context, req RequestSpec) (Result, error)
}

// BuildRequest turns an endpoint and its collected input into a concrete
// request. Required dependency values are bound to their query parameters.
func BuildRequest(baseURL string, ep model.Endpoint, in input.Input, lookup Lookup) (RequestSpec, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + ep.Path)
	if err != nil {
		return RequestSpec{}, err
	}

	if len(ep.Requires) > 0 {
		q := u.Query()
		for _, r := range ep.Requires {
			v, ok := lookup(r.Key)
			if !ok {
				return RequestSpec{}, fmt.Errorf("missing dependency: %s", r.Key)
			}
			q.Set(r.Param, deps.Format(v))
		}
		u.RawQuery = q.Encode()
	}

	headers := map[string]string{}

	var body []byte
	if shouldSendBody(ep) && in != nil {
		if v, ok := in.Body(); ok {
			b, err := json.Marshal(v)
			if err != nil {
				return RequestSpec{}, fmt.Errorf("encode body: %w", err)
			}
			body = b
			headers["Content-Type"] = "application/json"
		}
	}

	return RequestSpec{Method: ep.Method, URL: u.String(), Headers: headers, Body: body}, nil
}

// HTTP is the net/http backed Client. A zero Timeout never cancels a
// request on its own.
type HTTP struct {
	Timeout time.Duration
	client  *http.Client
}

func New(timeout time.Duration) *HTTP {
	return &HTTP{Timeout: timeout, client: &http.Client{Timeout: timeout}}
}

func (h *HTTP) Do(ctx context.Context, reqSpec RequestSpec) (Result, error) {
	client := h.client
	if client == nil {
		client = &http.Client{Timeout: h.Timeout}
	}
	var body io.Reader
	if len(reqSpec.Body) > 0 {
		body = bytes.NewReader(reqSpec.Body)
	}

	req, err := http.NewRequestWithContext(ctx, reqSpec.Method, reqSpec.URL, body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range reqSpec.Headers {
		if strings.TrimSpace(v) != "" {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return Result{}, fmt.Errorf("read body: %w", err)
	}

	headers := map[string]string{}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		headers["content-type"] = ct
	}

	return Result{StatusCode: resp.StatusCode, Status: resp.Status, Elapsed: elapsed, Headers: headers, Body: b}, nil
}

func shouldSendBody(ep model.Endpoint) bool {
	switch strings.ToUpper(ep.Method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return ep.HasBody()
	default:
		return false
	}
}
