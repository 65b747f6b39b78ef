package orchestrator

import "errors"

// ErrEmptyHierarchy is returned when the hierarchy walk found no
// applications. Exporting would replace the artifacts with empty documents.
var ErrEmptyHierarchy = errors.New("hierarchy walk found no applications")
