package types

import (
	"net/http"
	"testing"
)

func TestDocumentDecodesCharset(t *testing.T) {
	req, err := NewRequest("https://www.flipkart.com/p/1")
	if err != nil {
		t.Fatal(err)
	}

	// "Café" in ISO-8859-1.
	latin1 := []byte("<html><body><span class=\"t\">Caf\xe9</span></body></html>")
	httpResp := &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/html; charset=iso-8859-1"}},
	}
	resp := NewResponse(req, httpResp, latin1, 0)
	doc, err := resp.Document()
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if got := doc.Find("span.t").Text(); got != "Café" {
		t.Errorf("expected decoded title, got %q", got)
	}
	if again, _ := resp.Document(); again != doc {
		t.Error("expected the parsed document to be reused")
	}
}

func TestDocumentEmptyBody(t *testing.T) {
	req, err := NewRequest("https://www.flipkart.com/p/1")
	if err != nil {
		t.Fatal(err)
	}
	resp := NewResponse(req, &http.Response{StatusCode: http.StatusOK, Header: http.Header{}}, nil, 0)
	doc, err := resp.Document()
	if err != nil {
		t.Fatalf("empty body must parse: %v", err)
	}
	if doc.Find("span").Length() != 0 {
		t.Error("expected an empty document")
	}
}

func TestBrowserResponseIgnoresMetaCharset(t *testing.T) {
	req, err := NewRequest("https://www.flipkart.com/p/1")
	if err != nil {
		t.Fatal(err)
	}
	body := []byte(`<html><head><meta charset="iso-8859-1"></head><body><span class="t">₹10,000</span></body></html>`)
	resp := NewBrowserResponse(req, http.StatusOK, body, req.URLString(), 0)
	doc, err := resp.Document()
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if got := doc.Find("span.t").Text(); got != "₹10,000" {
		t.Errorf("expected UTF-8 text preserved, got %q", got)
	}
	if !resp.IsSuccess() {
		t.Error("expected success status")
	}
}
