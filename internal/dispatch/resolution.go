package dispatch

import (
	"context"
	"net/http"
)

// Resolution is the metadata a request carries about its dispatch: which
// handler group and action ran, and whether a view should be rendered
// for them afterwards.
type Resolution struct {
	Controller string `json:"controller"`
	Action     string `json:"action"`
	View       bool   `json:"view"`

	// Data is handed to the automatic view; actions set it with SetViewData
	Data any `json:"-"`
}

// Eligible reports whether the resolution asks for an automatic view.
func (r Resolution) Eligible() bool {
	return r.View && r.Controller != "" && r.Action != ""
}

type resolutionKey struct{}

// WithResolution returns a context carrying a fresh, empty resolution
// holder. The dispatcher fills the holder in place, so a stage that created
// it can read the outcome once the inner chain has returned.
func WithResolution(ctx context.Context) (context.Context, *Resolution) {
	res := &Resolution{}
	return context.WithValue(ctx, resolutionKey{}, res), res
}

// ResolutionFromContext returns the request's resolution holder.
func ResolutionFromContext(ctx context.Context) (*Resolution, bool) {
	res, ok := ctx.Value(resolutionKey{}).(*Resolution)
	return res, ok
}

// SetViewData stores data for the automatic view of the current request.
// It reports false when the request carries no resolution holder.
func SetViewData(r *http.Request, data any) bool {
	res, ok := ResolutionFromContext(r.Context())
	if !ok {
		return false
	}
	res.Data = data
	return true
}
