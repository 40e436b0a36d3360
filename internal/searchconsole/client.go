package searchconsole

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

// DefaultBaseURL is the root of the Search Console (webmasters v3) API.
const DefaultBaseURL = "https://www.googleapis.com/webmasters/v3"

// Scope is the read-only OAuth2 scope required by the list endpoint.
const Scope = "https://www.googleapis.com/auth/webmasters.readonly"

// HTTPClient implements Client over an already-authorized *http.Client.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// NewHTTPClient builds a Client. An empty baseURL selects DefaultBaseURL.
func NewHTTPClient(httpClient *http.Client, baseURL string, logger *zap.Logger) (*HTTPClient, error) {
	if httpClient == nil {
		return nil, errors.New("http client is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}, nil
}

// ListCrawlErrorSamples fetches one page of samples for the request.
func (c *HTTPClient) ListCrawlErrorSamples(ctx context.Context, req ReportRequest) (*SamplesPage, error) {
	endpoint := c.samplesURL(req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("list crawl error samples: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close response body", zap.Error(cerr))
		}
	}()

	if err := googleapi.CheckResponse(resp); err != nil {
		return nil, fmt.Errorf("list crawl error samples: %w", err)
	}

	var page SamplesPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode samples page: %w", err)
	}
	return &page, nil
}

func (c *HTTPClient) samplesURL(req ReportRequest) string {
	q := url.Values{}
	q.Set("category", string(req.Category))
	q.Set("platform", string(req.Platform))
	return fmt.Sprintf("%s/sites/%s/urlCrawlErrorsSamples?%s",
		c.baseURL, url.PathEscape(req.PropertyURI), q.Encode())
}

// StatusCode extracts the HTTP status carried by an API error.
func StatusCode(err error) (int, bool) {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	return 0, false
}
