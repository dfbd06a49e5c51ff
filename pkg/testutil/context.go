package testutil

import (
	"net/http"

	"covenant/pkg/requestcontext"
)

// WithClientMetadata sets the client IP and User-Agent the way the metadata
// middleware does.
func WithClientMetadata(req *http.Request, clientIP, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), clientIP, userAgent))
}
