package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// cors holds precomputed CORS response headers. The API is meant for
// dashboards on other origins, so any origin is allowed unless configured.
type cors struct {
	origin  string
	methods string
	headers string
	expose  string
	maxAge  string
}

func newCORS(origin string) cors {
	if origin == "" {
		origin = "*"
	}
	return cors{
		origin:  origin,
		methods: strings.Join([]string{http.MethodGet, http.MethodPut, http.MethodOptions}, ", "),
		headers: "Content-Type, Authorization, Accept, Last-Event-ID",
		// snapshot metadata lives in headers next to the image body
		expose: "X-Frame-Sequence, X-Frame-Captured",
		maxAge: strconv.Itoa(24 * 60 * 60),
	}
}

func (c cors) set(set func(name, value string)) {
	set("Access-Control-Allow-Origin", c.origin)
	set("Access-Control-Allow-Methods", c.methods)
	set("Access-Control-Allow-Headers", c.headers)
	set("Access-Control-Expose-Headers", c.expose)
	set("Access-Control-Max-Age", c.maxAge)
	if c.origin != "*" {
		set("Vary", "Origin")
	}
}

// middleware decorates huma responses.
func (c cors) middleware(ctx huma.Context, next func(huma.Context)) {
	c.set(ctx.SetHeader)
	next(ctx)
}

// preflight answers OPTIONS on the mux, since huma only sees routed operations.
func (c cors) preflight(w http.ResponseWriter, _ *http.Request) {
	c.set(w.Header().Set)
	w.WriteHeader(http.StatusNoContent)
}
