package repository

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
)

// TableNamer lets an entity override the table name derived from its
// struct name. Without it the snake_case of the type name is used.
type TableNamer interface {
	TableName() string
}

// Column describes one persistable struct field
type Column struct {
	Name  string // database column name
	Field string // struct field name
	isKey bool
	index int // reflect field index
}

// Metadata describes how an entity type maps onto its table.
// Resolved once per type and cached for the process lifetime.
type Metadata struct {
	Type      reflect.Type
	TableName string
	KeyColumn string
	KeyField  string
	keyIndex  int
	Columns   []Column // ordered as declared, includes the key column
	byName    map[string]Column
}

var metadataCache sync.Map // map[reflect.Type]*Metadata

// ResolveMetadata retrieves or builds metadata for the given struct type
func ResolveMetadata(t reflect.Type) (*Metadata, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidEntityType, t.Kind())
	}

	if m, ok := metadataCache.Load(t); ok {
		return m.(*Metadata), nil
	}

	m, err := buildMetadata(t)
	if err != nil {
		return nil, err
	}
	metadataCache.Store(t, m)
	return m, nil
}

// metadataFor resolves metadata for the generic type parameter
func metadataFor[T any]() (*Metadata, error) {
	return ResolveMetadata(reflect.TypeOf((*T)(nil)).Elem())
}

func buildMetadata(t reflect.Type) (*Metadata, error) {
	m := &Metadata{
		Type:     t,
		keyIndex: -1,
		byName:   make(map[string]Column),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue // unexported
		}

		tag := field.Tag.Get("db")
		name, opts := parseTag(tag)
		if name == "-" {
			continue
		}
		if name == "" {
			name = toSnakeCase(field.Name)
		}

		col := Column{
			Name:  name,
			Field: field.Name,
			isKey: hasOption(opts, "pk"),
			index: i,
		}

		if _, dup := m.byName[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q on type %s", ErrInvalidEntityType, name, t.Name())
		}

		if col.isKey {
			if m.keyIndex >= 0 {
				return nil, fmt.Errorf("%w: multiple pk columns on type %s", ErrInvalidEntityType, t.Name())
			}
			if err := checkKeyKind(field, t); err != nil {
				return nil, err
			}
			m.KeyColumn = name
			m.KeyField = field.Name
			m.keyIndex = i
		}

		m.Columns = append(m.Columns, col)
		m.byName[name] = col
	}

	// No explicit pk marker: fall back to a field literally named Id
	if m.keyIndex < 0 {
		for _, col := range m.Columns {
			if strings.EqualFold(col.Field, "id") {
				field := t.Field(col.index)
				if err := checkKeyKind(field, t); err != nil {
					return nil, err
				}
				m.KeyColumn = col.Name
				m.KeyField = col.Field
				m.keyIndex = col.index
				c := m.byName[col.Name]
				c.isKey = true
				m.byName[col.Name] = c
				break
			}
		}
	}

	if m.keyIndex < 0 {
		return nil, fmt.Errorf("%w: type %s has no `pk` tag option and no Id field", ErrNoKeyField, t.Name())
	}

	m.TableName = resolveTableName(t)
	return m, nil
}

func checkKeyKind(field reflect.StructField, t reflect.Type) error {
	switch field.Type.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return nil
	}
	return fmt.Errorf("%w: field %s.%s is %s", ErrInvalidKeyKind, t.Name(), field.Name, field.Type.Kind())
}

func resolveTableName(t reflect.Type) string {
	if namer, ok := reflect.New(t).Interface().(TableNamer); ok {
		if name := namer.TableName(); name != "" {
			return name
		}
	}
	return toSnakeCase(t.Name())
}

// parseTag splits a db struct tag into its name and options
func parseTag(tag string) (string, []string) {
	parts := strings.Split(tag, ",")
	return parts[0], parts[1:]
}

func hasOption(opts []string, want string) bool {
	for _, opt := range opts {
		if opt == want {
			return true
		}
	}
	return false
}

// toSnakeCase converts a mixed-case identifier to lower snake_case.
// Acronym runs stay together: UserID -> user_id, HTTPServer -> http_server.
func toSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i > 0 && (prevLower || (unicode.IsUpper(runes[i-1]) && nextLower)) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NonKeyColumns returns every column except the key, in declaration order.
// This is the insert column list.
func (m *Metadata) NonKeyColumns() []Column {
	cols := make([]Column, 0, len(m.Columns)-1)
	for _, c := range m.Columns {
		if !c.isKey {
			cols = append(cols, c)
		}
	}
	return cols
}

// ColumnNames returns the database names of the given columns
func ColumnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column descriptor by database name
func (m *Metadata) Column(name string) (Column, bool) {
	c, ok := m.byName[name]
	return c, ok
}

// KeyValue extracts the key of an entity (value or pointer) as int64
func (m *Metadata) KeyValue(entity any) int64 {
	v := reflect.Indirect(reflect.ValueOf(entity)).Field(m.keyIndex)
	if v.CanInt() {
		return v.Int()
	}
	return int64(v.Uint())
}

// SetKey writes a newly assigned key back onto the entity, which must be
// addressable (a pointer)
func (m *Metadata) SetKey(entity any, id int64) {
	v := reflect.ValueOf(entity).Elem().Field(m.keyIndex)
	if v.CanInt() {
		v.SetInt(id)
	} else {
		v.SetUint(uint64(id))
	}
}

// value extracts a single field value
func (m *Metadata) value(entity any, col Column) any {
	return reflect.Indirect(reflect.ValueOf(entity)).Field(col.index).Interface()
}

// values extracts the field values for the given columns, in order
func (m *Metadata) values(entity any, cols []Column) []any {
	v := reflect.Indirect(reflect.ValueOf(entity))
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = v.Field(c.index).Interface()
	}
	return out
}
