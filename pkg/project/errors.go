package project

import (
	"errors"
	"fmt"
)

// ErrDocumentNotInProject is the sentinel behind the core's only propagated
// failure: asking a project about a file it does not contain.
var ErrDocumentNotInProject = errors.New("document is not part of the project")

// documentError carries the file and project for error messages while
// unwrapping to ErrDocumentNotInProject.
type documentError struct {
	fileName    string
	projectName string
}

func (e *documentError) Error() string {
	return fmt.Sprintf("file %q is not part of project %q", e.fileName, e.projectName)
}

func (e *documentError) Unwrap() error { return ErrDocumentNotInProject }

// newDocumentError is the central factory for document membership failures.
func newDocumentError(fileName, projectName string) error {
	return &documentError{fileName: fileName, projectName: projectName}
}

// assertf trips on internal invariant violations: adding an existing root,
// operating on a closed project. Callers are expected to hold the invariant;
// a trip is a programming error, not a runtime condition.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("assertion failed: "+format, args...))
	}
}
