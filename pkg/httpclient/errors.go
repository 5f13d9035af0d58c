package httpclient

import (
	"fmt"
	"io"
	"net/http"
)

// ResponseError describes a non-2xx response from an upstream service.
type ResponseError struct {
	Status int
	Body   string
}

func (e *ResponseError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned status %d", e.Status)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Body)
}

// CheckResponse returns nil for 2xx responses. Otherwise it consumes and
// closes the body (at most 64KB) and returns a *ResponseError.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return &ResponseError{Status: resp.StatusCode, Body: string(body)}
}
