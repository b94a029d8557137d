package parsers

import (
	"io"

	"github.com/username/tradevault/backend/src/models"
)

// SheetParser converts one uploaded export file into canonical transactions.
// Implementations must tolerate malformed rows (skip or zero-default) and
// fail only when the overall file structure is unrecognizable.
type SheetParser interface {
	Parse(file io.Reader, filename string) ([]models.Transaction, error)
	ParseGrid(grid [][]string, filename string) ([]models.Transaction, error)
}
