package repository

import (
	"strings"
)

// Statement generation for the generic CRUD surface.
//
// Identifiers (table and column names) are derived from trusted type
// metadata, never from user input. All values are bound parameters.

// placeholders returns "?, ?, ..." with n markers
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(3 * n)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('?')
	}
	return b.String()
}

// buildSelectAll builds: SELECT * FROM {table}
func buildSelectAll(m *Metadata) string {
	return "SELECT * FROM " + m.TableName
}

// buildSelectByKey builds: SELECT * FROM {table} WHERE {key} = ?
func buildSelectByKey(m *Metadata) string {
	return "SELECT * FROM " + m.TableName + " WHERE " + m.KeyColumn + " = ?"
}

// buildSelectByKeys builds: SELECT * FROM {table} WHERE {key} IN (?, ...)
func buildSelectByKeys(m *Metadata, n int) string {
	return "SELECT * FROM " + m.TableName + " WHERE " + m.KeyColumn + " IN (" + placeholders(n) + ")"
}

// buildCount builds: SELECT COUNT(1) FROM {table} WHERE {key} = ?
func buildCount(m *Metadata) string {
	return "SELECT COUNT(1) FROM " + m.TableName + " WHERE " + m.KeyColumn + " = ?"
}

// buildCountAll builds: SELECT COUNT(1) FROM {table}
func buildCountAll(m *Metadata) string {
	return "SELECT COUNT(1) FROM " + m.TableName
}

// buildInsert builds a single or multi-row INSERT over the non-key
// columns:
//
//	INSERT INTO {table} (a, b) VALUES (?, ?), (?, ?), ...
func buildInsert(m *Metadata, rows int) string {
	cols := ColumnNames(m.NonKeyColumns())

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(m.TableName)
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(") VALUES ")

	row := "(" + placeholders(len(cols)) + ")"
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(row)
	}
	return b.String()
}

// buildUpdate builds: UPDATE {table} SET a = ?, b = ? WHERE {key} = ?
func buildUpdate(m *Metadata) string {
	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(m.TableName)
	b.WriteString(" SET ")
	for i, col := range m.NonKeyColumns() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col.Name)
		b.WriteString(" = ?")
	}
	b.WriteString(" WHERE ")
	b.WriteString(m.KeyColumn)
	b.WriteString(" = ?")
	return b.String()
}

// buildUpdateBatch builds one UPDATE covering n rows using per-column
// CASE expressions keyed on the primary key:
//
//	UPDATE {table} SET
//	  a = CASE {key} WHEN ? THEN ? WHEN ? THEN ? END,
//	  b = CASE {key} WHEN ? THEN ? WHEN ? THEN ? END
//	WHERE {key} IN (?, ?)
//
// Argument order follows the statement text: per column, (key, value)
// pairs for every row, then the keys for the IN list.
func buildUpdateBatch(m *Metadata, n int) string {
	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(m.TableName)
	b.WriteString(" SET ")
	for i, col := range m.NonKeyColumns() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col.Name)
		b.WriteString(" = CASE ")
		b.WriteString(m.KeyColumn)
		for j := 0; j < n; j++ {
			b.WriteString(" WHEN ? THEN ?")
		}
		b.WriteString(" END")
	}
	b.WriteString(" WHERE ")
	b.WriteString(m.KeyColumn)
	b.WriteString(" IN (")
	b.WriteString(placeholders(n))
	b.WriteString(")")
	return b.String()
}

// buildDelete builds: DELETE FROM {table} WHERE {key} IN (?, ...)
func buildDelete(m *Metadata, n int) string {
	return "DELETE FROM " + m.TableName + " WHERE " + m.KeyColumn + " IN (" + placeholders(n) + ")"
}
