package types

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// Response is a fetched search or product page.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Request    *Request

	// FinalURL is the URL after any redirects.
	FinalURL string

	FetchDuration time.Duration
	FetchedAt     time.Time

	doc *goquery.Document
}

// NewResponse creates a Response from an http.Response.
func NewResponse(req *Request, httpResp *http.Response, body []byte, duration time.Duration) *Response {
	finalURL := req.URLString()
	if httpResp.Request != nil && httpResp.Request.URL != nil {
		finalURL = httpResp.Request.URL.String()
	}
	return newResponse(req, httpResp.StatusCode, httpResp.Header, body, finalURL, duration)
}

// NewBrowserResponse creates a Response from rendered browser HTML, which
// is always UTF-8 whatever the page's meta tag claims.
func NewBrowserResponse(req *Request, statusCode int, body []byte, finalURL string, duration time.Duration) *Response {
	h := make(http.Header)
	h.Set("Content-Type", "text/html; charset=utf-8")
	return newResponse(req, statusCode, h, body, finalURL, duration)
}

func newResponse(req *Request, status int, h http.Header, body []byte, finalURL string, d time.Duration) *Response {
	return &Response{
		StatusCode:    status,
		Headers:       h,
		Body:          body,
		Request:       req,
		FinalURL:      finalURL,
		FetchDuration: d,
		FetchedAt:     time.Now(),
	}
}

// Document parses the body once, decoding it to UTF-8 from the charset in
// Content-Type or the page's meta tag.
func (r *Response) Document() (*goquery.Document, error) {
	if r.doc != nil {
		return r.doc, nil
	}
	var reader io.Reader = bytes.NewReader(r.Body)
	// charset.NewReader reports io.EOF for an empty body; an empty page is
	// still a document.
	if len(r.Body) > 0 {
		var err error
		reader, err = charset.NewReader(reader, r.Headers.Get("Content-Type"))
		if err != nil {
			return nil, &ParseError{URL: r.FinalURL, Err: err}
		}
	}
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, &ParseError{URL: r.FinalURL, Err: err}
	}
	r.doc = doc
	return doc, nil
}

// IsSuccess returns true if the response status is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
