package service

import (
	"io"
	"net/url"
	"strings"
)

// Upload is a binary file carried by a multipart request.
type Upload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// MomentRequest is the single shape both JSON and multipart payloads
// are decoded into before validation.
type MomentRequest struct {
	// Type is the raw wire value. Ignored on update.
	Type string
	// Text is the "content" field: literal text for TEXT moments, or an
	// external media URL when the payload cannot carry bytes.
	Text string
	// File is the uploaded media, if any.
	File *Upload
	// Date is the raw "date" field; empty means not supplied.
	Date string
}

func (r MomentRequest) hasFile() bool {
	return r.File != nil && r.File.Body != nil && r.File.Size != 0
}

func (r MomentRequest) hasText() bool {
	return strings.TrimSpace(r.Text) != ""
}

// isExternalURL reports whether s is an absolute http(s) URL with a host.
func isExternalURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
