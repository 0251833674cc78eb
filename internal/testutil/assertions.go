package testutil

import (
	"io"
	"net/http"
	"regexp"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
)

// ResponseAssertion provides fluent assertions for HTTP responses
type ResponseAssertion struct {
	t    *testing.T
	resp *http.Response
	body *string
}

// AssertResponse creates a new ResponseAssertion for the given response
func AssertResponse(t *testing.T, resp *http.Response) *ResponseAssertion {
	t.Helper()
	return &ResponseAssertion{t: t, resp: resp}
}

// Body returns the response body, reading it on first use
func (ra *ResponseAssertion) Body() string {
	if ra.body == nil {
		defer ra.resp.Body.Close()
		data, err := io.ReadAll(ra.resp.Body)
		if err != nil {
			ra.t.Fatalf("Failed to read response body: %v", err)
		}
		s := string(data)
		ra.body = &s
	}
	return *ra.body
}

// Status asserts the response has the expected status code
func (ra *ResponseAssertion) Status(code int) *ResponseAssertion {
	ra.t.Helper()
	assert.Equal(ra.t, code, ra.resp.StatusCode, "unexpected status for %s", ra.resp.Request.URL.Path)
	return ra
}

// StatusOK asserts the response has status 200
func (ra *ResponseAssertion) StatusOK() *ResponseAssertion {
	ra.t.Helper()
	return ra.Status(http.StatusOK)
}

// RedirectsTo asserts a 303 See Other pointing at location
func (ra *ResponseAssertion) RedirectsTo(location string) *ResponseAssertion {
	ra.t.Helper()
	ra.Status(http.StatusSeeOther)
	assert.Equal(ra.t, location, ra.resp.Header.Get("Location"))
	return ra
}

// Header asserts a response header contains value
func (ra *ResponseAssertion) Header(name, value string) *ResponseAssertion {
	ra.t.Helper()
	assert.Contains(ra.t, ra.resp.Header.Get(name), value, "header %s", name)
	return ra
}

// ContentTypeHTML asserts the response is HTML
func (ra *ResponseAssertion) ContentTypeHTML() *ResponseAssertion {
	ra.t.Helper()
	return ra.Header("Content-Type", "text/html")
}

// ContentTypeJSON asserts the response is JSON
func (ra *ResponseAssertion) ContentTypeJSON() *ResponseAssertion {
	ra.t.Helper()
	return ra.Header("Content-Type", "application/json")
}

// ContainsAll asserts the body contains every substring
func (ra *ResponseAssertion) ContainsAll(substrs ...string) *ResponseAssertion {
	ra.t.Helper()
	body := ra.Body()
	for _, s := range substrs {
		if !strings.Contains(body, s) {
			ra.t.Errorf("Expected body to contain %q.\nBody (first 500 chars): %s", s, truncate(body, 500))
		}
	}
	return ra
}

// NotContains asserts the body contains none of the substrings
func (ra *ResponseAssertion) NotContains(substrs ...string) *ResponseAssertion {
	ra.t.Helper()
	body := ra.Body()
	for _, s := range substrs {
		assert.NotContains(ra.t, body, s)
	}
	return ra
}

// HasElement asserts the body contains an element with the given id
func (ra *ResponseAssertion) HasElement(id string) *ResponseAssertion {
	ra.t.Helper()
	pattern := regexp.MustCompile(`id=["']` + regexp.QuoteMeta(id) + `["']`)
	if !pattern.MatchString(ra.Body()) {
		ra.t.Errorf("Expected body to contain element with id=%q", id)
	}
	return ra
}

// JSON decodes the body into v
func (ra *ResponseAssertion) JSON(v any) *ResponseAssertion {
	ra.t.Helper()
	if err := json.Unmarshal([]byte(ra.Body()), v); err != nil {
		ra.t.Fatalf("Failed to decode JSON body: %v\nBody: %s", err, truncate(ra.Body(), 500))
	}
	return ra
}

// Empty asserts the body has no content
func (ra *ResponseAssertion) Empty() *ResponseAssertion {
	ra.t.Helper()
	assert.Empty(ra.t, ra.Body())
	return ra
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
