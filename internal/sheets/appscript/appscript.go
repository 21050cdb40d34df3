// Package appscript talks to the Google Apps Script web app that fronts the
// budget spreadsheet and the receipt folder.
package appscript

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"yesan/internal/core"
	ports "yesan/internal/sheets"
)

var _ ports.MirrorStore = (*Client)(nil)

// Client speaks the web app protocol: list is a GET with the action and
// token in the query; save and uploadReceipt POST a JSON body as text/plain
// so the script receives it without a CORS preflight. A response carrying
// "error" is a failure regardless of status code.
type Client struct {
	url   string
	token string
	http  *http.Client
}

func New(webAppURL, token string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{url: webAppURL, token: token, http: hc}
}

type (
	// wireExpense tolerates what a spreadsheet hands back: numbers as
	// strings, booleans as "TRUE", and blank cells.
	wireExpense struct {
		ID           looseString `json:"id"`
		Date         looseString `json:"date"`
		Category     looseString `json:"category"`
		Description  looseString `json:"description"`
		Amount       looseString `json:"amount"`
		Purchaser    looseString `json:"purchaser"`
		ReceiptURL   looseString `json:"receiptUrl"`
		Reimbursed   looseBool   `json:"reimbursed"`
		ReimbursedAt looseString `json:"reimbursedAt"`
	}

	listResponse struct {
		Expenses *[]wireExpense `json:"expenses"`
		Error    string         `json:"error"`
	}

	uploadResponse struct {
		ViewURL string `json:"viewUrl"`
		FileID  string `json:"fileId"`
		ID      string `json:"id"`
		Error   string `json:"error"`
	}

	plainResponse struct {
		Error string `json:"error"`
	}

	looseString string
	looseBool   bool
)

func (s *looseString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	*s = looseString(strings.TrimSpace(string(b)))
	return nil
}

func (v *looseBool) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case bool:
		*v = looseBool(x)
	case string:
		ok, _ := strconv.ParseBool(strings.TrimSpace(x))
		*v = looseBool(ok)
	case float64:
		*v = x != 0
	default:
		*v = false
	}
	return nil
}

func (w wireExpense) toCore() core.Expense {
	date, _ := core.ParseDate(string(w.Date))
	paidAt, _ := core.ParseDate(string(w.ReimbursedAt))
	return core.Expense{
		ID:           string(w.ID),
		Date:         date,
		Category:     string(w.Category),
		Description:  string(w.Description),
		Amount:       core.ParseAmount(string(w.Amount)),
		Purchaser:    string(w.Purchaser),
		ReceiptURL:   string(w.ReceiptURL),
		Reimbursed:   bool(w.Reimbursed),
		ReimbursedAt: paidAt,
	}
}

// List fetches the remote expense list. A response without an expenses
// array is an error, so a broken script never looks like an empty sheet.
func (c *Client) List(ctx context.Context) ([]core.Expense, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("parse web app url: %w", err)
	}
	q := u.Query()
	q.Set("action", "list")
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}
	var resp listResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("list: %w: %s", ports.ErrUpstream, resp.Error)
	}
	if resp.Expenses == nil {
		return nil, fmt.Errorf("list: %w: response has no expenses array", ports.ErrUpstream)
	}
	out := make([]core.Expense, 0, len(*resp.Expenses))
	for _, w := range *resp.Expenses {
		out = append(out, w.toCore())
	}
	return out, nil
}

// Save overwrites the remote list.
func (c *Client) Save(ctx context.Context, expenses []core.Expense) error {
	if expenses == nil {
		expenses = []core.Expense{}
	}
	var resp plainResponse
	if err := c.post(ctx, "save", map[string]any{"expenses": expenses}, &resp); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("save: %w: %s", ports.ErrUpstream, resp.Error)
	}
	return nil
}

// UploadReceipt stores the image in the script's drive folder.
func (c *Client) UploadReceipt(ctx context.Context, r core.Receipt) (string, error) {
	payload := map[string]any{
		"filename": r.Filename,
		"mimeType": r.MimeType,
		"dataUrl":  r.DataURL(),
	}
	var resp uploadResponse
	if err := c.post(ctx, "uploadReceipt", payload, &resp); err != nil {
		return "", fmt.Errorf("upload receipt: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("upload receipt: %w: %s", ports.ErrUpstream, resp.Error)
	}
	id := resp.FileID
	if id == "" {
		id = resp.ID
	}
	ref := core.ReceiptViewURL(resp.ViewURL, id)
	if ref == "" {
		return "", fmt.Errorf("upload receipt: %w: response has no reference", ports.ErrUpstream)
	}
	return ref, nil
}

func (c *Client) post(ctx context.Context, action string, fields map[string]any, out any) error {
	body := map[string]any{"action": action, "token": c.token}
	for k, v := range fields {
		body[k] = v
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ports.ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ports.ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e plainResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("%w: status %d: %s", ports.ErrUpstream, resp.StatusCode, e.Error)
		}
		return fmt.Errorf("%w: status %d", ports.ErrUpstream, resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ports.ErrUpstream, err)
	}
	return nil
}

// ErrNotConfigured is returned by NewFromConfig when url or token is empty.
var ErrNotConfigured = errors.New("apps script url and token are required")

// NewFromConfig validates the web app settings before building a client.
func NewFromConfig(webAppURL, token string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(webAppURL) == "" || strings.TrimSpace(token) == "" {
		return nil, ErrNotConfigured
	}
	if _, err := url.ParseRequestURI(webAppURL); err != nil {
		return nil, fmt.Errorf("invalid apps script url: %w", err)
	}
	return New(webAppURL, token, &http.Client{Timeout: timeout}), nil
}
