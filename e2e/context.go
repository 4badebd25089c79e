package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// TestContext drives a running storefront as a single browser would: one
// cookie jar, redirects not followed so each hop can be asserted.
type TestContext struct {
	BaseURL string

	client   *http.Client
	status   int
	header   http.Header
	body     []byte
	statuses []int
}

func NewTestContext(baseURL string) *TestContext {
	tc := &TestContext{BaseURL: strings.TrimRight(baseURL, "/")}
	tc.NewBrowser()
	return tc
}

// NewBrowser discards every cookie, starting a fresh browser session.
func (tc *TestContext) NewBrowser() {
	jar, _ := cookiejar.New(nil)
	tc.client = &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	tc.status, tc.header, tc.body, tc.statuses = 0, nil, nil, nil
}

func (tc *TestContext) GET(path string) error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, tc.resolve(path), nil)
	if err != nil {
		return err
	}
	return tc.do(req)
}

func (tc *TestContext) POSTForm(path string, form url.Values) error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, tc.resolve(path), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return tc.do(req)
}

// FollowRedirect requests the Location of the last response.
func (tc *TestContext) FollowRedirect() error {
	loc := tc.Location()
	if loc == "" {
		return fmt.Errorf("last response (%d) has no Location header", tc.status)
	}
	return tc.GET(loc)
}

func (tc *TestContext) GetLastResponseStatus() int {
	return tc.status
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.body
}

func (tc *TestContext) GetLastResponseHeader(name string) string {
	if tc.header == nil {
		return ""
	}
	return tc.header.Get(name)
}

// Statuses lists every response status since the last ResetStatuses call.
func (tc *TestContext) Statuses() []int {
	return tc.statuses
}

func (tc *TestContext) ResetStatuses() {
	tc.statuses = nil
}

// Location returns the redirect target of the last response, relative to the
// storefront when it points at the same host.
func (tc *TestContext) Location() string {
	loc := tc.GetLastResponseHeader("Location")
	return strings.TrimPrefix(loc, tc.BaseURL)
}

// GetResponseField reads a top-level field of a JSON response body.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(tc.body, &payload); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	v, ok := payload[field]
	if !ok {
		return nil, fmt.Errorf("field %q not present in response", field)
	}
	return v, nil
}

func (tc *TestContext) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return tc.BaseURL + path
}

func (tc *TestContext) do(req *http.Request) error {
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read body: %w", err)
	}
	tc.status = resp.StatusCode
	tc.header = resp.Header
	tc.body = body
	tc.statuses = append(tc.statuses, resp.StatusCode)
	return nil
}
