package tipy

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/table"
)

// PrintSchema writes the reflected columns and the associations of each
// model to w. Useful for checking how a table maps to attributes.
func (db *DB) PrintSchema(ctx context.Context, w io.Writer, models ...*Model) error {
	fmt.Fprintf(w, "SQL Dialect: %s\n", db.dialect.DriverName)
	for _, m := range models {
		s, err := m.prepare(ctx, db)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "%s (%s)\n", m.name, s.Table)
		tw := table.NewWriter()
		tw.AppendHeader(table.Row{"Column", "Attribute", "Type", "Is Primary Key"})
		for i, field := range s.Fields {
			tw.AppendRow(table.Row{field, s.Attributes[i], s.FieldTypes[field], field == PrimaryKey})
		}
		fmt.Fprintln(w, tw.Render())

		for _, a := range m.Associations() {
			fmt.Fprintf(w, "%s.%s => %s\n", m.name, a.Name, a.describe())
		}
		fmt.Fprintln(w)
	}
	return nil
}
