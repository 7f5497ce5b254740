package imagesearch

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

// fakeProvider serves handler over an in-memory listener and points c at it.
func fakeProvider(t *testing.T, c *client, handler fasthttp.RequestHandler) {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	c.http = &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
	c.endpoint = "http://provider.test/search"
}

func TestGoogleSearch(t *testing.T) {
	g := NewGoogle("key", "cx", 0)
	var query string
	fakeProvider(t, &g.client, func(ctx *fasthttp.RequestCtx) {
		args := ctx.QueryArgs()
		query = string(args.Peek("q"))
		if string(args.Peek("searchType")) != "image" {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"items":[{"link":"https://img.example/cat.jpg"},{"link":"https://img.example/2.jpg"}]}`)
	})

	u, err := g.Search(context.Background(), "sleepy cat")
	if err != nil {
		t.Fatal(err)
	}
	if u != "https://img.example/cat.jpg" {
		t.Errorf("url = %q", u)
	}
	if query != "sleepy cat" {
		t.Errorf("query = %q", query)
	}
}

func TestPixabayNoHits(t *testing.T) {
	p := NewPixabay("key", 0)
	fakeProvider(t, &p.client, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`{"total":0,"hits":[]}`)
	})
	if _, err := p.Search(context.Background(), "nothing"); !errors.Is(err, ErrNoResult) {
		t.Errorf("err = %v, want ErrNoResult", err)
	}
}

func TestProviderHTTPError(t *testing.T) {
	p := NewPixabay("key", 0)
	fakeProvider(t, &p.client, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
	})
	_, err := p.Search(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("err = %v, want status 429", err)
	}
}

func TestUnconfigured(t *testing.T) {
	if _, err := NewGoogle("", "", 0).Search(context.Background(), "x"); err == nil {
		t.Error("google without key should fail")
	}
	if _, err := NewPixabay("", 0).Search(context.Background(), "x"); err == nil {
		t.Error("pixabay without key should fail")
	}
}

type stubSearcher struct {
	url   string
	err   error
	calls int
}

func (s *stubSearcher) Search(context.Context, string) (string, error) {
	s.calls++
	return s.url, s.err
}

func TestChainFallsBack(t *testing.T) {
	primary := &stubSearcher{err: errors.New("quota")}
	fallback := &stubSearcher{url: "https://fallback/img.png"}
	u, err := Chain{Primary: primary, Fallback: fallback}.Search(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if u != "https://fallback/img.png" || primary.calls != 1 || fallback.calls != 1 {
		t.Errorf("url=%q primary=%d fallback=%d", u, primary.calls, fallback.calls)
	}

	primary = &stubSearcher{url: "https://primary/img.png"}
	fallback = &stubSearcher{url: "unused"}
	u, _ = Chain{Primary: primary, Fallback: fallback}.Search(context.Background(), "q")
	if u != "https://primary/img.png" || fallback.calls != 0 {
		t.Errorf("url=%q fallback calls=%d", u, fallback.calls)
	}
}

func TestChainBothFail(t *testing.T) {
	c := Chain{Primary: &stubSearcher{err: errors.New("a")}, Fallback: &stubSearcher{err: ErrNoResult}}
	_, err := c.Search(context.Background(), "q")
	if !errors.Is(err, ErrNoResult) {
		t.Errorf("err = %v, want joined ErrNoResult", err)
	}
	if _, err := (Chain{}).Search(context.Background(), "q"); err == nil {
		t.Error("empty chain should fail")
	}
}
