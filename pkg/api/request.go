package api

import "net/http"

// Request is the transport-neutral form of an inbound call. Each entrypoint
// converts its runtime event into a Request.
type Request struct {
	Method string
	Path   string
	// PathParameters holds gateway-extracted parameters such as job_id.
	// It may be nil.
	PathParameters map[string]string
	Headers        map[string]string
	Body           []byte
}

// Response is what the router hands back to the entrypoint.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Result is the successful outcome of a handler. The router serializes Body
// as JSON.
type Result struct {
	StatusCode int
	Body       any
}

func ok(body any) Result {
	return Result{StatusCode: http.StatusOK, Body: body}
}
