package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gotest.tools/v3/assert"
)

type errorResponse struct {
	Message string `json:"message"`
}

// assertErrorResponse checks the status code of the recorded response, and
// that the error body carries the expected message. An empty message
// expects the default status text.
func assertErrorResponse(t *testing.T, rec *httptest.ResponseRecorder, expectedStatusCode int, expectedMessage string) {
	t.Helper()
	assert.Equal(t, rec.Code, expectedStatusCode, "status code did not match expected")

	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("could not extract error from response body %q: %s", rec.Body.String(), err)
	}

	if expectedMessage == "" {
		expectedMessage = http.StatusText(expectedStatusCode)
	}
	assert.Equal(t, body.Message, expectedMessage)
}
