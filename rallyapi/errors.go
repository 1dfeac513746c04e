package rallyapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 64 << 10

// FieldError is one entry of a 422 validation payload
type FieldError struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// Field renders the location path, e.g. "body.access_code"
func (f FieldError) Field() string {
	parts := make([]string, 0, len(f.Loc))
	for _, p := range f.Loc {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, ".")
}

// APIError is a non-2xx response from the Rally API.
type APIError struct {
	StatusCode int
	Detail     string       // Human readable detail, empty when the body carried none
	Fields     []FieldError // Field errors of a 422 response
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rally api: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message("request failed"))
}

// Message returns the detail to show a user, or fallback when the server sent none.
func (e *APIError) Message(fallback string) string {
	if e == nil {
		return fallback
	}
	if e.Detail != "" {
		return e.Detail
	}
	for _, f := range e.Fields {
		if f.Msg != "" {
			if field := f.Field(); field != "" {
				return field + ": " + f.Msg
			}
			return f.Msg
		}
	}
	return fallback
}

// NetworkError is a transport level failure: the request never produced a response,
// so nothing is known about the credential it carried.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("rally api: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// CheckResponse returns an *APIError for non-2xx responses and nil otherwise.
// The body of a failed response is consumed.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return newAPIError(resp.StatusCode, body)
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: body}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return apiErr
	}

	switch detail := payload["detail"].(type) {
	case string:
		apiErr.Detail = detail
		return apiErr
	case []any:
		raw, _ := json.Marshal(detail)
		_ = json.Unmarshal(raw, &apiErr.Fields)
		return apiErr
	}

	apiErr.Detail = nestedDetail(payload, 3)
	return apiErr
}

// nestedDetail searches objects inside the body for a string detail field,
// e.g. {"error":{"detail":"..."}} or {"response":{"data":{"detail":"..."}}}.
func nestedDetail(node map[string]any, depth int) string {
	if depth == 0 {
		return ""
	}
	if detail, ok := node["detail"].(string); ok && detail != "" {
		return detail
	}
	for _, v := range node {
		if child, ok := v.(map[string]any); ok {
			if detail := nestedDetail(child, depth-1); detail != "" {
				return detail
			}
		}
	}
	return ""
}
