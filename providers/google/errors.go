package google

import (
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// maxErrorBody bounds how much of a failed response body is read.
const maxErrorBody = 64 << 10

// ConfigError reports a provider that cannot issue requests as configured.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("google: invalid config: %s: %s", e.Field, e.Message)
}

var errMissingAPIKey = &ConfigError{
	Field:   "APIKey",
	Message: "no API key: set GEMINI_API_KEY or use WithAPIKey",
}

// APIError is a non-2xx HTTP response from the API.
type APIError struct {
	StatusCode int
	// Status, Code and Message come from the JSON error envelope when the
	// body has one.
	Status  string
	Code    int
	Message string
	Body    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	if e.Status != "" {
		return fmt.Sprintf("google: HTTP %d %s: %s", e.StatusCode, e.Status, msg)
	}
	return fmt.Sprintf("google: HTTP %d: %s", e.StatusCode, msg)
}

// newAPIError reads at most maxErrorBody bytes of resp's body.
func newAPIError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	e := &APIError{
		StatusCode: resp.StatusCode,
		Body:       string(raw),
	}
	if gjson.ValidBytes(raw) {
		env := gjson.GetBytes(raw, "error")
		e.Status = env.Get("status").String()
		e.Code = int(env.Get("code").Int())
		e.Message = env.Get("message").String()
	}
	return e
}
