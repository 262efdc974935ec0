package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ferry/internal/config"
	"ferry/internal/services"
)

const (
	listingPath     = "/v2/course/content/get"
	maxPages        = 1000
	maxErrorSnippet = 256
)

// Listing is the decoded content of one folder across all pages.
type Listing struct {
	FolderID string
	Children []Node
}

// Fetcher is the catalog surface the walker depends on.
type Fetcher interface {
	FetchFolder(ctx context.Context, courseID, folderID string) (Listing, error)
}

// Options configures a Client. Values are copied at construction.
type Options struct {
	BaseURL       string
	SignedURLPath string
	AccessToken   string
	APIVersion    string
	Region        string
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// OptionsFromConfig maps the catalog section of cfg onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:       cfg.Catalog.BaseURL,
		SignedURLPath: cfg.Catalog.SignedURLPath,
		AccessToken:   cfg.Catalog.AccessToken,
		APIVersion:    cfg.Catalog.APIVersion,
		Region:        cfg.Catalog.Region,
		Timeout:       cfg.CatalogTimeout(),
	}
}

// Client calls the catalog HTTP API.
type Client struct {
	baseURL       string
	signedURLPath string
	headers       http.Header
	timeout       time.Duration
	http          *http.Client
}

// NewClient constructs a catalog client.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "init", "base url is required", nil)
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "init", "invalid base url", err)
	}
	signed := strings.TrimSpace(opts.SignedURLPath)
	if signed != "" && !strings.HasPrefix(signed, "/") {
		signed = "/" + signed
	}
	headers := http.Header{}
	headers.Set("Accept", "application/json, text/plain, */*")
	headers.Set("x-access-token", opts.AccessToken)
	if opts.APIVersion != "" {
		headers.Set("api-version", opts.APIVersion)
	}
	if opts.Region != "" {
		headers.Set("region", opts.Region)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:       base,
		signedURLPath: signed,
		headers:       headers,
		timeout:       opts.Timeout,
		http:          httpClient,
	}, nil
}

type listingResponse struct {
	Status string `json:"status"`
	Data   *struct {
		CourseContent []wireNode `json:"courseContent"`
		NextPageToken string     `json:"nextPageToken"`
		HasMore       bool       `json:"hasMore"`
	} `json:"data"`
}

// FetchFolder returns every child of folderID in listing order, following
// pagination until the catalog reports no more pages.
func (c *Client) FetchFolder(ctx context.Context, courseID, folderID string) (Listing, error) {
	listing := Listing{FolderID: folderID}
	pageToken := ""
	offset := -1
	for page := 0; page < maxPages; page++ {
		params := url.Values{}
		params.Set("courseId", courseID)
		params.Set("folderId", folderID)
		params.Set("storeContentEvent", "false")
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}
		if offset >= 0 {
			params.Set("offset", strconv.Itoa(offset))
		}

		var resp listingResponse
		if err := c.getJSON(ctx, c.baseURL+listingPath+"?"+params.Encode(), &resp); err != nil {
			return Listing{}, services.Wrap(services.ErrFetch, "catalog", "fetch folder", "folder "+folderID, err)
		}
		if resp.Status != "success" || resp.Data == nil {
			return Listing{}, services.Wrap(services.ErrFetch, "catalog", "fetch folder",
				fmt.Sprintf("folder %s: unexpected response status %q", folderID, resp.Status), nil)
		}
		start := len(listing.Children)
		for i, raw := range resp.Data.CourseContent {
			node, err := decodeNode(raw, "", start+i)
			if err != nil {
				return Listing{}, services.Wrap(services.ErrFetch, "catalog", "decode folder", "folder "+folderID, err)
			}
			listing.Children = append(listing.Children, node)
		}

		switch {
		case resp.Data.NextPageToken != "" && resp.Data.NextPageToken != pageToken:
			pageToken = resp.Data.NextPageToken
			offset = -1
		case resp.Data.HasMore && len(resp.Data.CourseContent) > 0:
			pageToken = ""
			offset = len(listing.Children)
		default:
			return listing, nil
		}
	}
	return Listing{}, services.Wrap(services.ErrFetch, "catalog", "fetch folder",
		fmt.Sprintf("folder %s: more than %d pages", folderID, maxPages), nil)
}

type signedURLResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

// SignedStreamURL exchanges a video content hash for a signed manifest URL.
func (c *Client) SignedStreamURL(ctx context.Context, contentHashID string) (string, error) {
	if c.signedURLPath == "" {
		return "", services.Wrap(services.ErrConfiguration, "catalog", "signed url", "signed url path is not configured", nil)
	}
	endpoint := c.baseURL + c.signedURLPath + "?contentId=" + url.QueryEscape(contentHashID)
	var resp signedURLResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return "", services.Wrap(services.ErrFetch, "catalog", "signed url", "", err)
	}
	if !resp.Success || strings.TrimSpace(resp.URL) == "" {
		return "", services.Wrap(services.ErrFetch, "catalog", "signed url", "catalog returned no url", nil)
	}
	return strings.TrimSpace(resp.URL), nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, target any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for key, values := range c.headers {
		req.Header[key] = values
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorSnippet))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
