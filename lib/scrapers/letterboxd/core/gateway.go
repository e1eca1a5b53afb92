package core

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

// Request describes one call through the gateway. Path is resolved
// against the client's base origin; passing a full site url is fine,
// the origin prefix is stripped back off. Form and FormList are only
// sent on mutating methods, with the anti-forgery token merged in.
type Request struct {
	Method string
	Path   string
	Query  map[string]string
	Form   map[string]string
	// FormList carries form fields the site expects repeated, e.g.
	// one tag field per tag. Values are appended after Form.
	FormList url.Values
}

// Response is the classified outcome of a successful request.
type Response struct {
	StatusCode int
	Body       []byte
	// FinalUrl is the url after redirects, which the site uses to
	// reveal canonical entity paths.
	FinalUrl *url.URL
	Verdict  Classification
}

// Do issues a request through the session. It holds the session lock
// across token merge, send, classification and snapshot persistence so
// the cookie jar and token can never be observed mid-update. The
// snapshot is persisted after every classified response, including
// rejected ones, because the token can rotate on any exchange; it is
// not persisted after transport failures.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "client:Do")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	path := strings.TrimPrefix(req.Path, c.BaseUrl.String())

	r := c.Http.R().SetContext(ctx)
	if len(req.Query) > 0 {
		r.SetQueryParams(req.Query)
	}
	if req.Method != resty.MethodGet {
		values := url.Values{}
		for k, v := range c.mergeToken(req.Form) {
			values.Set(k, v)
		}
		for k, list := range req.FormList {
			for _, v := range list {
				values.Add(k, v)
			}
		}
		r.SetFormDataFromValues(values)
	}

	start := time.Now()
	res, err := r.Execute(req.Method, "/"+strings.TrimPrefix(path, "/"))
	if err != nil {
		c.metrics.ObserveRequest(req.Method, "transport", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return nil, TransportError{Err: err}
	}

	verdict, classErr := Classify(res.StatusCode(), res.Body())
	c.metrics.ObserveRequest(req.Method, errorLabel(classErr), time.Since(start))

	err = c.Persist()
	if err != nil {
		span.RecordError(err)
		c.report.ReportBroken("persist", err)
	}

	if classErr != nil {
		span.SetStatus(codes.Error, classErr.Error())
		c.report.ReportDebug("request rejected",
			"method", req.Method, "path", path, "verdict", verdict.String())
		return nil, classErr
	}

	return &Response{
		StatusCode: res.StatusCode(),
		Body:       res.Body(),
		FinalUrl:   res.RawResponse.Request.URL,
		Verdict:    verdict,
	}, nil
}

// Get issues a GET for the given path through the gateway.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: resty.MethodGet, Path: path})
}

// GetDocument issues a GET and parses the body as a document. Entity
// pages, listing pages and the csi/esi fragments all parse this way.
func (c *Client) GetDocument(ctx context.Context, path string) (*goquery.Document, error) {
	res, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// PostForm issues a POST with the given form payload through the
// gateway. The anti-forgery token is merged into the payload; caller
// fields win on collision.
func (c *Client) PostForm(ctx context.Context, path string, form map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: resty.MethodPost, Path: path, Form: form})
}

// csrfToken reads the current anti-forgery token out of the cookie
// jar, empty when the site has not handed one out yet.
func (c *Client) csrfToken() string {
	for _, cookie := range c.Http.GetClient().Jar.Cookies(c.BaseUrl) {
		if cookie.Name == csrfCookie {
			return cookie.Value
		}
	}
	return ""
}

func (c *Client) mergeToken(form map[string]string) map[string]string {
	token := c.csrfToken()
	if token == "" {
		return form
	}
	merged := map[string]string{csrfField: token}
	for k, v := range form {
		merged[k] = v
	}
	return merged
}
