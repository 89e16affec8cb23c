package contract

import "errors"

// ErrNotebookMissing is returned when an entry references a notebook that no
// longer exists, e.g. it was deleted while a query was streaming.
var ErrNotebookMissing = errors.New("notebook does not exist")
