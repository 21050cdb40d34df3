// Package export reads sheets through the public CSV export endpoint of a
// shared spreadsheet, which needs no credentials.
package export

import (
	"context"
	"fmt"
	"html"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"yesan/internal/csvtable"
	ports "yesan/internal/sheets"
)

// DefaultBaseURL is the spreadsheet host.
const DefaultBaseURL = "https://docs.google.com/spreadsheets/d/"

var (
	_ ports.TableSource = (*Source)(nil)
	_ ports.TitleSource = (*Source)(nil)

	titleTag = regexp.MustCompile(`(?is)<title>([^<]+)</title>`)
)

// Source fetches one sheet (gid) of a spreadsheet as CSV.
type Source struct {
	client        *http.Client
	baseURL       string
	spreadsheetID string
	gid           string
}

type Option func(*Source)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) { s.client = c }
}

// WithBaseURL points the source at another host, e.g. an httptest server.
func WithBaseURL(u string) Option {
	return func(s *Source) { s.baseURL = strings.TrimSuffix(u, "/") + "/" }
}

func New(spreadsheetID, gid string, opts ...Option) *Source {
	s := &Source{
		client:        NewHTTPClient(30 * time.Second),
		baseURL:       DefaultBaseURL,
		spreadsheetID: spreadsheetID,
		gid:           gid,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewHTTPClient returns a client with connection pooling and bounded
// timeouts suited to repeated spreadsheet fetches.
func NewHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// ExportURL is the CSV download link of the configured sheet.
func (s *Source) ExportURL() string {
	q := url.Values{"format": {"csv"}, "gid": {s.gid}}
	return s.baseURL + url.PathEscape(s.spreadsheetID) + "/export?" + q.Encode()
}

func (s *Source) FetchTable(ctx context.Context) (csvtable.Table, error) {
	body, err := s.get(ctx, s.ExportURL())
	if err != nil {
		return csvtable.Table{}, err
	}
	defer body.Close()

	t, err := csvtable.Parse(body)
	if err != nil {
		return csvtable.Table{}, fmt.Errorf("parse export: %w", err)
	}
	return t, nil
}

// Title scrapes the document title from the spreadsheet's HTML page.
func (s *Source) Title(ctx context.Context) (string, error) {
	body, err := s.get(ctx, s.baseURL+url.PathEscape(s.spreadsheetID)+"/edit")
	if err != nil {
		return "", err
	}
	defer body.Close()

	page, err := io.ReadAll(io.LimitReader(body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read spreadsheet page: %w", err)
	}
	m := titleTag.FindSubmatch(page)
	if m == nil {
		return "", fmt.Errorf("spreadsheet page has no title")
	}
	return strings.TrimSpace(html.UnescapeString(string(m[1]))), nil
}

func (s *Source) get(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ports.ErrUpstream, redact(u), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: fetch %s: status %d", ports.ErrUpstream, redact(u), resp.StatusCode)
	}
	return resp.Body, nil
}

// redact drops the query string, which may identify private sheets.
func redact(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
