package response

// Business codes follow HTTP semantics directly; 0 means OK.
const (
	CodeOK               = 0
	CodeBadRequest       = 400
	CodeUnauthorized     = 401
	CodeForbidden        = 403
	CodeNotFound         = 404
	CodeConflict         = 409
	CodePayloadTooLarge  = 413
	CodeUnsupportedMedia = 415
	CodeTooManyRequests  = 429
	CodeServerError      = 500
)

// CodeMsgMap centralizes the default message per code.
var CodeMsgMap = map[int]string{
	CodeOK:               "OK",
	CodeBadRequest:       "Bad Request",
	CodeUnauthorized:     "Unauthorized",
	CodeForbidden:        "Forbidden",
	CodeNotFound:         "Not Found",
	CodeConflict:         "Conflict",
	CodePayloadTooLarge:  "Payload Too Large",
	CodeUnsupportedMedia: "Unsupported Media Type",
	CodeTooManyRequests:  "Too Many Requests",
	CodeServerError:      "Internal Server Error",
}
