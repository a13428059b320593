package form4

import "fmt"

// StructuralParseError reports a node the Form 4 layout requires that is
// missing or malformed. It fails the whole filing.
type StructuralParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *StructuralParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("form4: %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("form4: %s: %s", e.Path, e.Reason)
}

func (e *StructuralParseError) Unwrap() error { return e.Err }

func missing(path string) error {
	return &StructuralParseError{Path: path, Reason: "required node missing"}
}

func malformed(path string, err error) error {
	return &StructuralParseError{Path: path, Reason: "malformed value", Err: err}
}
