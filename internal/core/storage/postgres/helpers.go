package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/aevon-lab/docagg/internal/core/storage"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTemplateRow scans a database row into a Template.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanTemplateRow(row scanner) (*storage.Template, error) {
	var tpl storage.Template
	var specs []byte

	if err := row.Scan(&tpl.ID, &tpl.Name, &tpl.Collection, &specs, &tpl.CreatedAt); err != nil {
		return nil, err
	}
	if !json.Valid(specs) {
		return nil, fmt.Errorf("template %q has malformed specs", tpl.Name)
	}
	tpl.Specs = json.RawMessage(specs)
	tpl.CreatedAt = tpl.CreatedAt.UTC()
	return &tpl, nil
}
