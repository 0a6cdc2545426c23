package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"holodeck/assets"
	"holodeck/config"
	"holodeck/logging"
)

// ErrMissingField is returned before any request is made when an upload lacks
// a file, name or type.
var ErrMissingField = errors.New("client: upload requires a file, asset name, and asset type")

// APIError is a non-2xx answer from the Asset Store.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return e.Detail
}

// Client talks to the Asset Store REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *logging.Logger
}

// New builds a client for baseURL. A nil httpClient gets a 30s timeout.
func New(baseURL string, httpClient *http.Client, log *logging.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("client: invalid base URL %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		log:        logging.OrNop(log).With("component", "client"),
	}, nil
}

// NewFromConfig builds a client from the editor configuration.
func NewFromConfig(cfg config.Config, log *logging.Logger) (*Client, error) {
	return New(cfg.APIURL, &http.Client{Timeout: cfg.RequestTimeout}, log)
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// FileURL is where the store serves the binary recorded at filePath.
func (c *Client) FileURL(filePath string) string {
	return assets.FileURL(c.baseURL, filePath)
}

// List fetches the full asset list.
func (c *Client) List(ctx context.Context) ([]assets.Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/assets", nil)
	if err != nil {
		return nil, err
	}
	var out []assets.Asset
	if err := c.do(req, &out, ""); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, &APIError{StatusCode: apiErr.StatusCode, Detail: fmt.Sprintf("Failed to fetch assets: %s", http.StatusText(apiErr.StatusCode))}
		}
		return nil, err
	}
	if out == nil {
		out = []assets.Asset{}
	}
	return out, nil
}

// Get fetches one asset.
func (c *Client) Get(ctx context.Context, id uint64) (assets.Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/assets/%d", c.baseURL, id), nil)
	if err != nil {
		return assets.Asset{}, err
	}
	var out assets.Asset
	err = c.do(req, &out, "")
	return out, err
}

// UploadRequest describes one multipart upload.
type UploadRequest struct {
	Name     string
	Type     assets.AssetType
	Filename string
	Body     io.Reader
}

// Validate reports ErrMissingField when the form is incomplete.
func (r UploadRequest) Validate() error {
	if r.Body == nil || strings.TrimSpace(r.Filename) == "" || strings.TrimSpace(r.Name) == "" || r.Type == "" {
		return ErrMissingField
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: %q", assets.ErrInvalidAssetType, r.Type)
	}
	return nil
}

// Upload sends the file and returns the created record.
func (c *Client) Upload(ctx context.Context, up UploadRequest) (assets.Asset, error) {
	if err := up.Validate(); err != nil {
		return assets.Asset{}, err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUpload(mw, up))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/assets/upload", pr)
	if err != nil {
		pr.Close()
		return assets.Asset{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out assets.Asset
	if err := c.do(req, &out, "Upload failed with no specific error message."); err != nil {
		return assets.Asset{}, err
	}
	c.log.Info("asset uploaded", "asset_id", out.ID, "name", out.Name)
	return out, nil
}

func writeUpload(mw *multipart.Writer, up UploadRequest) error {
	if err := mw.WriteField("name", strings.TrimSpace(up.Name)); err != nil {
		return err
	}
	if err := mw.WriteField("asset_type", string(up.Type)); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", up.Filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, up.Body); err != nil {
		return err
	}
	return mw.Close()
}

// Update sends a partial update and returns the stored record.
func (c *Client) Update(ctx context.Context, id uint64, update assets.Update) (assets.Asset, error) {
	body, err := json.Marshal(update)
	if err != nil {
		return assets.Asset{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, fmt.Sprintf("%s/assets/%d", c.baseURL, id), bytes.NewReader(body))
	if err != nil {
		return assets.Asset{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out assets.Asset
	if err := c.do(req, &out, "Failed to update asset transform"); err != nil {
		return assets.Asset{}, err
	}
	return out, nil
}

// Delete removes an asset. The response body is not required.
func (c *Client) Delete(ctx context.Context, id uint64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/assets/%d", c.baseURL, id), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil, "Deletion failed with no specific error message.")
}

// do executes req and decodes a 2xx JSON body into out (when non-nil).
// fallback is used as the error detail when a failed response carries none;
// empty means "HTTP error! status: <code>".
func (c *Client) do(req *http.Request, out interface{}, fallback string) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp, fallback)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response, fallback string) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Detail) > 0 {
		var msg string
		if json.Unmarshal(body.Detail, &msg) == nil {
			apiErr.Detail = msg
		} else {
			apiErr.Detail = string(body.Detail)
		}
	}
	if apiErr.Detail == "" {
		apiErr.Detail = fallback
	}
	if apiErr.Detail == "" {
		apiErr.Detail = fmt.Sprintf("HTTP error! status: %d", resp.StatusCode)
	}
	return apiErr
}
