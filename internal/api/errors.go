package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP error! status: %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

// EnvelopeError is returned when the backend answers 2xx with success=false
type EnvelopeError struct {
	Message string
}

func (e *EnvelopeError) Error() string {
	if e.Message == "" {
		return "request was not successful"
	}
	return e.Message
}

// InvalidResponseError reports a history payload that failed validation
type InvalidResponseError struct {
	Reason string
}

func (e *InvalidResponseError) Error() string {
	return "invalid history response: " + e.Reason
}

// Message returns the most useful human text of err: the backend message when
// the backend supplied one, otherwise the error text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Message != "" {
		return statusErr.Message
	}
	var envErr *EnvelopeError
	if errors.As(err, &envErr) {
		return envErr.Error()
	}
	return err.Error()
}

func newStatusError(resp *http.Response) *StatusError {
	statusErr := &StatusError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(body) == 0 {
		return statusErr
	}

	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		statusErr.Message = payload.Message
		return statusErr
	}

	if !strings.Contains(resp.Header.Get("Content-Type"), "html") {
		statusErr.Message = strings.TrimSpace(string(body))
	}
	return statusErr
}
