package testutil

import (
	"net/http"
	"time"

	"talenttrack/pkg/requestcontext"
)

// WithRequestTime pins the request-scoped clock on a test request, the way
// the request time middleware does in production.
func WithRequestTime(req *http.Request, at time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), at))
}
