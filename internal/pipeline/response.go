package pipeline

import (
	"bytes"
	"io"
	"net/http"
)

// Response is the result of a dispatch or a short-circuiting middleware.
// Whoever receives a non-nil Response must close it.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// NewResponse creates a response. A nil body is replaced by http.NoBody.
func NewResponse(status int, header http.Header, body io.ReadCloser) *Response {
	if header == nil {
		header = make(http.Header)
	}
	if body == nil {
		body = http.NoBody
	}
	return &Response{StatusCode: status, Header: header, Body: body}
}

// BytesResponse creates a response with an in-memory body.
func BytesResponse(status int, contentType string, body []byte) *Response {
	header := make(http.Header)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return NewResponse(status, header, io.NopCloser(bytes.NewReader(body)))
}

// Close releases the body.
func (r *Response) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	return r.Body.Close()
}
