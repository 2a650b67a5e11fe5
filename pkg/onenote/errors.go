package onenote

import (
	"fmt"
	"strings"

	"github.com/romanzh1/onenote-export/pkg/utils"
)

// AuthFlowError reports that the device-code exchange could not be started.
type AuthFlowError struct {
	Err error
}

func (e *AuthFlowError) Error() string {
	return fmt.Sprintf("device code flow failed: %v", e.Err)
}

func (e *AuthFlowError) Unwrap() error {
	return e.Err
}

// TokenAcquisitionError reports that the provider never resolved the device code to a token.
type TokenAcquisitionError struct {
	Code        string
	Description string
	Err         error
}

func (e *TokenAcquisitionError) Error() string {
	detail := e.Description
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	if detail == "" {
		detail = "unknown error"
	}
	if e.Code != "" {
		return fmt.Sprintf("failed to acquire token (%s): %s", e.Code, detail)
	}
	return fmt.Sprintf("failed to acquire token: %s", detail)
}

func (e *TokenAcquisitionError) Unwrap() error {
	return e.Err
}

// APICallError is returned when a Graph request hit a non-retryable status
// or ran out of attempts.
type APICallError struct {
	URL        string
	StatusCode int
	Body       string
	Attempts   int
	Err        error
}

func (e *APICallError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph request failed (url: %s", e.URL)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ", status: %d", e.StatusCode)
	}
	if e.Attempts > 0 {
		fmt.Fprintf(&b, ", attempts: %d", e.Attempts)
	}
	b.WriteString(")")
	if e.Body != "" {
		fmt.Fprintf(&b, ": %s", utils.Truncate(strings.TrimSpace(e.Body), 512))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *APICallError) Unwrap() error {
	return e.Err
}

// MediaDownloadError is recoverable: the page is exported without the media file.
type MediaDownloadError struct {
	URL string
	Err error
}

func (e *MediaDownloadError) Error() string {
	return fmt.Sprintf("download media (url: %s): %v", e.URL, e.Err)
}

func (e *MediaDownloadError) Unwrap() error {
	return e.Err
}
