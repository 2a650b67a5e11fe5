package service

import "fmt"

// PageExportError is recovered by the walker: the page is skipped and the
// export moves on.
type PageExportError struct {
	PageID string
	Title  string
	Err    error
}

func (e *PageExportError) Error() string {
	return fmt.Sprintf("export page (page_id: %s, title: %q): %v", e.PageID, e.Title, e.Err)
}

func (e *PageExportError) Unwrap() error {
	return e.Err
}
