package parsers

import (
	"fmt"

	"github.com/username/tradevault/backend/src/parsers/sheetexport"
)

func GetParser(source string) (SheetParser, error) {
	switch source {
	case "", "sheet", "thinkorswim":
		return sheetexport.NewParser(), nil
	default:
		return nil, fmt.Errorf("no parser available for source: %s", source)
	}
}
