// File: internal/cms/client.go
package cms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/kgtool/internal/config"
	"github.com/xkilldash9x/kgtool/internal/network"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrUnexpectedStatus is returned when a listing or counting request does not
// come back with 200 OK.
var ErrUnexpectedStatus = errors.New("unexpected status from CMS")

const articlesPath = "/api/articles"

// Article is one record from the articles collection. Image fields are kept
// raw: Strapi returns null for an empty media field and an object or array
// otherwise, and only presence matters here.
type Article struct {
	ID            int                 `json:"id"`
	DocumentID    string              `json:"documentId"`
	Title         *string             `json:"title"`
	GridImage     jsoniter.RawMessage `json:"gridImage"`
	FeaturedImage jsoniter.RawMessage `json:"featuredImage"`
}

// DisplayTitle returns the title or "NO TITLE" when the record has none.
func (a Article) DisplayTitle() string {
	if a.Title == nil {
		return "NO TITLE"
	}
	return *a.Title
}

// HasGridImage reports whether gridImage is present and non-null.
func (a Article) HasGridImage() bool { return present(a.GridImage) }

// HasFeaturedImage reports whether featuredImage is present and non-null.
func (a Article) HasFeaturedImage() bool { return present(a.FeaturedImage) }

// Incomplete is true when the article has neither image.
func (a Article) Incomplete() bool {
	return !a.HasGridImage() && !a.HasFeaturedImage()
}

func present(raw jsoniter.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "" && trimmed != "null"
}

// Pagination mirrors meta.pagination in Strapi list responses.
type Pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

type listResponse struct {
	Data []Article `json:"data"`
	Meta struct {
		Pagination *Pagination `json:"pagination"`
	} `json:"meta"`
}

// Client talks to the Strapi REST API.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	token    string
	pageSize int
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, mostly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(cl *Client) { cl.token = token }
}

// WithDeleteRate limits deletes to perSecond requests per second. Zero or
// less disables limiting.
func WithDeleteRate(perSecond float64) Option {
	return func(cl *Client) {
		if perSecond > 0 {
			cl.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			cl.limiter = nil
		}
	}
}

// WithPageSize sets the page size used for follow-up pages when the server
// does not report one.
func WithPageSize(n int) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.pageSize = n
		}
	}
}

// NewClient builds a client for the CMS at baseURL.
func NewClient(baseURL string, logger *zap.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid CMS base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid CMS base URL %q: scheme and host are required", baseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL:  u,
		pageSize: 100,
		logger:   logger.Named("cms"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = network.NewClient(nil).Client
	}
	return c, nil
}

// NewClientFromConfig wires a client from the cms configuration section.
func NewClientFromConfig(cfg config.CMSConfig, logger *zap.Logger) (*Client, error) {
	netCfg := network.NewDefaultClientConfig()
	netCfg.Logger = logger
	netCfg.IgnoreTLSErrors = cfg.IgnoreTLSErrors
	if cfg.Timeout > 0 {
		netCfg.RequestTimeout = cfg.Timeout
	}

	return NewClient(cfg.BaseURL, logger,
		WithHTTPClient(network.NewClient(netCfg).Client),
		WithToken(cfg.APIToken),
		WithDeleteRate(cfg.RateLimit),
		WithPageSize(cfg.PageSize),
	)
}

// ListArticles fetches every article with all relations populated. The
// first request is always "?populate=*"; further pages are requested only
// when the server reports more than one.
func (c *Client) ListArticles(ctx context.Context) ([]Article, error) {
	first, err := c.list(ctx, "populate=*")
	if err != nil {
		return nil, err
	}
	articles := first.Data

	p := first.Meta.Pagination
	if p == nil || p.PageCount <= 1 {
		return articles, nil
	}

	size := p.PageSize
	if size <= 0 {
		size = c.pageSize
	}
	c.logger.Debug("Following paginated article listing",
		zap.Int("page_count", p.PageCount),
		zap.Int("page_size", size),
		zap.Int("total", p.Total))

	for page := 2; page <= p.PageCount; page++ {
		query := fmt.Sprintf("populate=*&pagination[page]=%d&pagination[pageSize]=%d", page, size)
		resp, err := c.list(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		articles = append(articles, resp.Data...)
	}
	return articles, nil
}

// CountArticles returns the number of articles. It prefers
// meta.pagination.total and falls back to the length of the first page.
func (c *Client) CountArticles(ctx context.Context) (int, error) {
	resp, err := c.list(ctx, "")
	if err != nil {
		return 0, err
	}
	if p := resp.Meta.Pagination; p != nil && p.Total > 0 {
		return p.Total, nil
	}
	return len(resp.Data), nil
}

// DeleteArticle deletes the article with the given document id and returns
// the HTTP status. Only 200 counts as success; any other status is reported
// back to the caller with a nil error. A non-nil error means the request
// never completed.
func (c *Client) DeleteArticle(ctx context.Context, documentID string) (int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	req, err := c.newRequest(ctx, http.MethodDelete, articlesPath+"/"+documentID, "")
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", documentID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("Delete request finished",
		zap.String("document_id", documentID),
		zap.Int("status", resp.StatusCode))
	return resp.StatusCode, nil
}

func (c *Client) list(ctx context.Context, rawQuery string) (*listResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, articlesPath, rawQuery)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %s %s returned %d", ErrUnexpectedStatus, req.Method, req.URL.Path, resp.StatusCode)
	}

	var out listResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode article listing: %w", err)
	}
	return &out, nil
}

func (c *Client) newRequest(ctx context.Context, method, path, rawQuery string) (*http.Request, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawPath = ""
	u.RawQuery = rawQuery

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}
