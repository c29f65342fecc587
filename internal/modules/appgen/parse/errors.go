package parse

import "fmt"

// ParseError reports that no strategy could recover structure from Raw.
// Raw is kept verbatim so operators can see what the model returned.
type ParseError struct {
	Raw   string
	Stage string
	Err   error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("parse failed at %s: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
