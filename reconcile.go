package tabsql

import (
	"context"
	"fmt"
	"strings"
)

// Reconciler aligns the inferred schema with the live destination table.
// It is the only component that changes table structure.
type Reconciler struct {
	conn Conn
}

// NewReconciler creates a reconciler borrowing the run's connection.
func NewReconciler(conn Conn) *Reconciler {
	return &Reconciler{conn: conn}
}

// Reconcile applies the load mode against the destination and returns the
// schema the loader must use, with column-name collisions resolved.
//
// overwrite drops and recreates the table. append creates the table when
// missing and otherwise verifies that every inferred column maps to a
// compatible existing column (case-insensitive); any mismatch fails with
// ErrSchemaConflict before a single row is written.
func (r *Reconciler) Reconcile(ctx context.Context, schema *TableSchema, mode LoadMode) (*TableSchema, error) {
	resolved, err := resolveColumnCollisions(schema)
	if err != nil {
		return nil, err
	}

	switch mode {
	case LoadModeOverwrite:
		drop := fmt.Sprintf("DROP TABLE IF EXISTS %s", r.conn.QuoteIdent(resolved.Table))
		if err := r.conn.ExecDDL(ctx, drop); err != nil {
			return nil, fmt.Errorf("failed to drop table %s: %w", resolved.Table, err)
		}
		if err := r.createTable(ctx, resolved); err != nil {
			return nil, err
		}
		return resolved, nil

	case LoadModeAppend:
		exists, err := r.conn.TableExists(ctx, resolved.Table)
		if err != nil {
			return nil, fmt.Errorf("failed to check table %s: %w", resolved.Table, err)
		}
		if !exists {
			if err := r.createTable(ctx, resolved); err != nil {
				return nil, err
			}
			return resolved, nil
		}
		if err := r.checkAppendCompatible(ctx, resolved); err != nil {
			return nil, err
		}
		return resolved, nil

	default:
		return nil, fmt.Errorf("unsupported load mode %q", mode)
	}
}

// createTable issues CREATE TABLE from the schema using the engine's type
// names.
func (r *Reconciler) createTable(ctx context.Context, schema *TableSchema) error {
	defs := make([]string, len(schema.Columns))
	for i, col := range schema.Columns {
		def := r.conn.QuoteIdent(col.Name) + " " + r.conn.ColumnTypeName(col.Type)
		if !col.Nullable {
			def += " NOT NULL"
		}
		defs[i] = def
	}

	stmt := fmt.Sprintf("CREATE TABLE %s (%s)",
		r.conn.QuoteIdent(schema.Table),
		strings.Join(defs, ", "),
	)
	if err := r.conn.ExecDDL(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create table %s: %w", schema.Table, err)
	}
	return nil
}

// checkAppendCompatible verifies that every inferred column maps onto an
// existing column of a compatible type. Extra destination columns are
// fine; they stay NULL for appended rows.
func (r *Reconciler) checkAppendCompatible(ctx context.Context, schema *TableSchema) error {
	existing, err := r.conn.TableColumns(ctx, schema.Table)
	if err != nil {
		return fmt.Errorf("failed to read columns of table %s: %w", schema.Table, err)
	}

	byName := make(map[string]ColumnSpec, len(existing))
	for _, col := range existing {
		byName[strings.ToLower(col.Name)] = col
	}

	for _, col := range schema.Columns {
		target, ok := byName[strings.ToLower(col.Name)]
		if !ok {
			return schemaConflict(schema.Table, col.Name, "column does not exist in destination table")
		}
		if !target.Type.acceptsAppend(col.Type) {
			return schemaConflict(schema.Table, col.Name,
				fmt.Sprintf("existing type %s cannot accept inferred type %s", target.Type, col.Type))
		}
	}
	return nil
}

// resolveColumnCollisions renames case-insensitive duplicate column names
// by suffixing _2, _3, ... in first-seen order. Renaming never cascades
// into a fresh collision because candidate names are re-checked.
func resolveColumnCollisions(schema *TableSchema) (*TableSchema, error) {
	seen := make(map[string]bool, len(schema.Columns))
	columns := make([]ColumnSpec, len(schema.Columns))

	for i, col := range schema.Columns {
		name := col.Name
		key := strings.ToLower(name)
		if seen[key] {
			found := false
			for n := 2; n < 2+len(schema.Columns); n++ {
				candidate := fmt.Sprintf("%s_%d", name, n)
				if !seen[strings.ToLower(candidate)] {
					name = candidate
					key = strings.ToLower(candidate)
					found = true
					break
				}
			}
			if !found {
				return nil, fmt.Errorf("%w: %s", errDuplicateColumnName, col.Name)
			}
		}
		seen[key] = true
		columns[i] = ColumnSpec{Name: name, Type: col.Type, Nullable: col.Nullable}
	}

	return &TableSchema{Table: schema.Table, Columns: columns}, nil
}
