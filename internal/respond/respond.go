// Package respond holds the small response helpers actions use to reply
// without touching headers and status codes directly.
package respond

import (
	"encoding/json"
	"io"
	"net/http"
)

const (
	contentTypeText = "text/plain; charset=utf-8"
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json"
)

// Text writes body with status as plain text.
func Text(w http.ResponseWriter, status int, body string) {
	write(w, status, contentTypeText, body)
}

// HTML writes body with status as HTML.
func HTML(w http.ResponseWriter, status int, body string) {
	write(w, status, contentTypeHTML, body)
}

// JSON encodes v with status.
func JSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// OK replies 200 with a plain text body.
func OK(w http.ResponseWriter, body string) {
	Text(w, http.StatusOK, body)
}

// Error replies 500 with msg.
func Error(w http.ResponseWriter, msg string) {
	Text(w, http.StatusInternalServerError, msg)
}

// BadRequest replies 400 with msg.
func BadRequest(w http.ResponseWriter, msg string) {
	Text(w, http.StatusBadRequest, msg)
}

// NotFound replies 404. An empty msg uses the status text.
func NotFound(w http.ResponseWriter, msg string) {
	if msg == "" {
		msg = http.StatusText(http.StatusNotFound)
	}
	Text(w, http.StatusNotFound, msg)
}

// NotFoundHandler is the default continuation at the end of the chain.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFound(w, "")
	})
}

func write(w http.ResponseWriter, status int, contentType, body string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
