// Package imagesearch resolves a free-text query to one image URL.
package imagesearch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNoResult is returned when a provider answered without any image.
var ErrNoResult = errors.New("imagesearch: no result")

// Searcher finds an image for a query.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

const (
	googleEndpoint  = "https://www.googleapis.com/customsearch/v1"
	pixabayEndpoint = "https://pixabay.com/api/"
	defaultTimeout  = 10 * time.Second
)

// client is the HTTP plumbing shared by both providers.
type client struct {
	http     *fasthttp.Client
	endpoint string
	limiter  *rate.Limiter
	timeout  time.Duration
}

func newClient(endpoint string, ratePerMinute float64) client {
	c := client{
		http:     &fasthttp.Client{Name: "chatalyst"},
		endpoint: endpoint,
		timeout:  defaultTimeout,
	}
	if ratePerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(ratePerMinute/60), 1)
	}
	return c
}

func (c client) get(ctx context.Context, params url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.endpoint + "?" + params.Encode())
	req.Header.SetMethod(fasthttp.MethodGet)
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, err
	}
	if code := resp.StatusCode(); code != fasthttp.StatusOK {
		return nil, fmt.Errorf("status %d", code)
	}
	return append([]byte(nil), resp.Body()...), nil
}

// Google searches with the Custom Search JSON API in image mode.
type Google struct {
	client
	key string
	cx  string
}

// NewGoogle creates the Custom Search provider.
func NewGoogle(apiKey, cx string, ratePerMinute float64) *Google {
	return &Google{client: newClient(googleEndpoint, ratePerMinute), key: apiKey, cx: cx}
}

// Search returns the direct link of the first image result.
func (g *Google) Search(ctx context.Context, query string) (string, error) {
	if g.key == "" || g.cx == "" {
		return "", errors.New("google: not configured")
	}
	body, err := g.get(ctx, url.Values{
		"key":        {g.key},
		"cx":         {g.cx},
		"q":          {query},
		"searchType": {"image"},
		"num":        {"1"},
		"safe":       {"active"},
	})
	if err != nil {
		return "", fmt.Errorf("google: %w", err)
	}
	return firstURL(body, "items.#.link")
}

// Pixabay searches the Pixabay photo API.
type Pixabay struct {
	client
	key string
}

// NewPixabay creates the Pixabay provider.
func NewPixabay(apiKey string, ratePerMinute float64) *Pixabay {
	return &Pixabay{client: newClient(pixabayEndpoint, ratePerMinute), key: apiKey}
}

// Search returns the web-format URL of the first hit.
func (p *Pixabay) Search(ctx context.Context, query string) (string, error) {
	if p.key == "" {
		return "", errors.New("pixabay: not configured")
	}
	body, err := p.get(ctx, url.Values{
		"key":        {p.key},
		"q":          {query},
		"image_type": {"photo"},
		"safesearch": {"true"},
		"per_page":   {"3"},
	})
	if err != nil {
		return "", fmt.Errorf("pixabay: %w", err)
	}
	return firstURL(body, "hits.#.webformatURL")
}

func firstURL(body []byte, path string) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", errors.New("invalid json response")
	}
	for _, v := range gjson.GetBytes(body, path).Array() {
		if s := v.String(); s != "" {
			return s, nil
		}
	}
	return "", ErrNoResult
}

// Chain tries Primary and falls back on any error.
type Chain struct {
	Primary  Searcher
	Fallback Searcher
	Logger   *zap.Logger
}

// Search implements Searcher.
func (c Chain) Search(ctx context.Context, query string) (string, error) {
	var errs []error
	for _, s := range []Searcher{c.Primary, c.Fallback} {
		if s == nil {
			continue
		}
		u, err := s.Search(ctx, query)
		if err == nil {
			return u, nil
		}
		if c.Logger != nil {
			c.Logger.Debug("image provider failed", zap.String("query", query), zap.Error(err))
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", errors.New("imagesearch: no provider configured")
	}
	return "", errors.Join(errs...)
}
