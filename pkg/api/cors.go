package api

// CORS response headers attached to every response, including errors.
const (
	AllowOrigin  = "*"
	AllowHeaders = "Content-Type,X-Amz-Date,Authorization,X-Api-Key,X-Amz-Security-Token"
	AllowMethods = "GET,POST,PUT,DELETE,OPTIONS"
	MaxAge       = "86400"
)

// Headers returns a fresh copy of the response header set.
func Headers() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  AllowOrigin,
		"Access-Control-Allow-Headers": AllowHeaders,
		"Access-Control-Allow-Methods": AllowMethods,
		"Access-Control-Max-Age":       MaxAge,
		"Content-Type":                 "application/json",
	}
}
