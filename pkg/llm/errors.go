package llm

import "fmt"

// StatusError 表示供应商返回的非 2xx HTTP 响应。
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status code %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: status code %d: %s", e.Provider, e.StatusCode, e.Body)
}
