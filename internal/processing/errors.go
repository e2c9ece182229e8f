package processing

import "fmt"

// UnsupportedFileError is returned when an upload is not a PDF document.
type UnsupportedFileError struct {
	Name     string
	MIMEType string
}

func (e *UnsupportedFileError) Error() string {
	return fmt.Sprintf("unsupported file %s: detected %s, expected application/pdf", e.Name, e.MIMEType)
}

// ResponseError is returned when a 2xx response does not match the expected payload shape.
type ResponseError struct {
	Op    string
	Cause error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("unexpected Processing API response during %s: %v", e.Op, e.Cause)
}

func (e *ResponseError) Unwrap() error {
	return e.Cause
}
