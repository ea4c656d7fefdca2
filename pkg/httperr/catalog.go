package httperr

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Code defines a canonical error code used across API handlers.
type Code string

const (
	// Validation & Input
	Validation      Code = "VALIDATION"
	SessionNotFound Code = "SESSION_NOT_FOUND"
	CursorInvalid   Code = "CURSOR_INVALID"

	// Resource & Limits
	BusyResource    Code = "BUSY_RESOURCE"
	Timeout         Code = "TIMEOUT"
	PayloadTooLarge Code = "PAYLOAD_TOO_LARGE"

	// Ingestion
	UnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	ParseFailure      Code = "PARSE_FAILURE"
	StaleUpload       Code = "STALE_UPLOAD"

	// Export
	ExportFailed Code = "EXPORT_FAILED"

	// Embed token relay
	ConfigIncomplete    Code = "CONFIG_INCOMPLETE"
	UpstreamAuthFailed  Code = "UPSTREAM_AUTH_FAILED"
	UpstreamTokenFailed Code = "UPSTREAM_TOKEN_FAILED"

	Internal Code = "INTERNAL"
)

// Entry documents a code's standard message, HTTP status, and retry semantics.
type Entry struct {
	Code      Code
	Status    int
	Message   string
	Retryable bool
}

// catalog maps canonical codes to guidance. Messages can be overridden per error.
var catalog = map[Code]Entry{
	Validation:      {Code: Validation, Status: http.StatusBadRequest, Message: "invalid inputs", Retryable: true},
	SessionNotFound: {Code: SessionNotFound, Status: http.StatusNotFound, Message: "session not found or expired", Retryable: true},
	CursorInvalid:   {Code: CursorInvalid, Status: http.StatusBadRequest, Message: "cursor is invalid for current dataset", Retryable: true},

	BusyResource:    {Code: BusyResource, Status: http.StatusServiceUnavailable, Message: "concurrent request limit reached", Retryable: true},
	Timeout:         {Code: Timeout, Status: http.StatusGatewayTimeout, Message: "operation exceeded configured time limit", Retryable: true},
	PayloadTooLarge: {Code: PayloadTooLarge, Status: http.StatusRequestEntityTooLarge, Message: "uploaded file exceeds configured size", Retryable: false},

	UnsupportedFormat: {Code: UnsupportedFormat, Status: http.StatusBadRequest, Message: "unsupported file format", Retryable: false},
	ParseFailure:      {Code: ParseFailure, Status: http.StatusUnprocessableEntity, Message: "file could not be parsed", Retryable: false},
	StaleUpload:       {Code: StaleUpload, Status: http.StatusConflict, Message: "upload superseded by a newer one", Retryable: true},

	ExportFailed: {Code: ExportFailed, Status: http.StatusInternalServerError, Message: "export failed", Retryable: true},

	ConfigIncomplete:    {Code: ConfigIncomplete, Status: http.StatusInternalServerError, Message: "embed configuration is incomplete", Retryable: false},
	UpstreamAuthFailed:  {Code: UpstreamAuthFailed, Status: http.StatusInternalServerError, Message: "failed to authenticate with identity provider", Retryable: true},
	UpstreamTokenFailed: {Code: UpstreamTokenFailed, Status: http.StatusInternalServerError, Message: "failed to generate embed token", Retryable: true},

	Internal: {Code: Internal, Status: http.StatusInternalServerError, Message: "internal error", Retryable: true},
}

// Response is the JSON error body shape shared by every endpoint, including
// the embed token relay contract: {error, details?}.
type Response struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// normalize builds the standard error string "CODE: message".
func normalize(code Code, msg string) string {
	base := strings.TrimSpace(msg)
	e, ok := catalog[code]
	if !ok {
		if base == "" {
			return string(code)
		}
		return fmt.Sprintf("%s: %s", string(code), base)
	}
	if base == "" {
		base = e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, base)
}

// StatusFor returns the HTTP status mapped to a code, defaulting to 500.
func StatusFor(code Code) int {
	if e, ok := catalog[code]; ok {
		return e.Status
	}
	return http.StatusInternalServerError
}

// Write emits the JSON error body for a code with an optional message override.
func Write(w http.ResponseWriter, code Code, message string) {
	WriteDetails(w, code, message, "")
}

// WriteDetails emits the JSON error body with a low-sensitivity details field.
// Callers must not put credential material or upstream response bodies in details.
func WriteDetails(w http.ResponseWriter, code Code, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusFor(code))
	_ = json.NewEncoder(w).Encode(Response{Error: normalize(code, message), Details: details})
}

// Wrapf formats details and emits the JSON error body for the code.
func Wrapf(w http.ResponseWriter, code Code, format string, args ...any) {
	Write(w, code, fmt.Sprintf(format, args...))
}
