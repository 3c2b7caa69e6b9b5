package tabsql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumnType_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ct       ColumnType
		expected string
	}{
		{ColumnTypeInteger, "INTEGER"},
		{ColumnTypeReal, "REAL"},
		{ColumnTypeBoolean, "BOOLEAN"},
		{ColumnTypeDate, "DATE"},
		{ColumnTypeDatetime, "DATETIME"},
		{ColumnTypeText, "TEXT"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.ct.String())
	}
}

func TestPromote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		a, b     ColumnType
		expected ColumnType
	}{
		{
			name:     "same type is unchanged",
			a:        ColumnTypeInteger,
			b:        ColumnTypeInteger,
			expected: ColumnTypeInteger,
		},
		{
			name:     "integer widens to real",
			a:        ColumnTypeInteger,
			b:        ColumnTypeReal,
			expected: ColumnTypeReal,
		},
		{
			name:     "real and integer commute",
			a:        ColumnTypeReal,
			b:        ColumnTypeInteger,
			expected: ColumnTypeReal,
		},
		{
			name:     "date widens to datetime",
			a:        ColumnTypeDate,
			b:        ColumnTypeDatetime,
			expected: ColumnTypeDatetime,
		},
		{
			name:     "boolean and integer fall back to text",
			a:        ColumnTypeBoolean,
			b:        ColumnTypeInteger,
			expected: ColumnTypeText,
		},
		{
			name:     "boolean and real fall back to text",
			a:        ColumnTypeBoolean,
			b:        ColumnTypeReal,
			expected: ColumnTypeText,
		},
		{
			name:     "integer and date fall back to text",
			a:        ColumnTypeInteger,
			b:        ColumnTypeDate,
			expected: ColumnTypeText,
		},
		{
			name:     "anything with text stays text",
			a:        ColumnTypeText,
			b:        ColumnTypeInteger,
			expected: ColumnTypeText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, promote(tt.a, tt.b))
		})
	}
}

func TestColumnType_acceptsAppend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		existing ColumnType
		inferred ColumnType
		expected bool
	}{
		{"text accepts integer", ColumnTypeText, ColumnTypeInteger, true},
		{"text accepts datetime", ColumnTypeText, ColumnTypeDatetime, true},
		{"exact integer match", ColumnTypeInteger, ColumnTypeInteger, true},
		{"real accepts integer", ColumnTypeReal, ColumnTypeInteger, true},
		{"integer rejects real", ColumnTypeInteger, ColumnTypeReal, false},
		{"datetime accepts date", ColumnTypeDatetime, ColumnTypeDate, true},
		{"date rejects datetime", ColumnTypeDate, ColumnTypeDatetime, false},
		{"integer rejects text", ColumnTypeInteger, ColumnTypeText, false},
		{"boolean rejects integer", ColumnTypeBoolean, ColumnTypeInteger, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.existing.acceptsAppend(tt.inferred))
		})
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		fallback string
		expected string
	}{
		{"plain name unchanged", "age", "column1", "age"},
		{"spaces become underscores", "first name", "column1", "first_name"},
		{"punctuation collapses", "price ($)", "column1", "price"},
		{"leading digit prefixed", "2024_sales", "column1", "column1_2024_sales"},
		{"empty uses fallback", "", "column3", "column3"},
		{"only punctuation uses fallback", "---", "column2", "column2"},
		{"mixed case preserved", "FirstName", "column1", "FirstName"},
		{"consecutive separators collapse", "a  -  b", "column1", "a_b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, sanitizeIdentifier(tt.input, tt.fallback))
		})
	}
}

func TestSanitizeColumnName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "name", sanitizeColumnName("name", 0))
	assert.Equal(t, "column1", sanitizeColumnName("", 0))
	assert.Equal(t, "column4", sanitizeColumnName("  ", 3))
}

func TestSanitizeTableName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "people", sanitizeTableName("people"))
	assert.Equal(t, "sales_2024", sanitizeTableName("sales 2024"))
	assert.Equal(t, "table", sanitizeTableName("!!!"))
}

func TestNewBatchSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"zero selects default", 0, DefaultBatchSize},
		{"negative selects default", -10, DefaultBatchSize},
		{"below minimum clamps up", 100, MinBatchSize},
		{"above maximum clamps down", 100000, MaxBatchSize},
		{"in-range value kept", 2000, 2000},
		{"minimum kept", MinBatchSize, MinBatchSize},
		{"maximum kept", MaxBatchSize, MaxBatchSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, NewBatchSize(tt.input).Int())
		})
	}
}

func TestParseLoadMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected LoadMode
		ok       bool
	}{
		{"overwrite", LoadModeOverwrite, true},
		{"append", LoadModeAppend, true},
		{"  Append ", LoadModeAppend, true},
		{"OVERWRITE", LoadModeOverwrite, true},
		{"merge", LoadMode("merge"), false},
		{"", LoadMode(""), false},
	}

	for _, tt := range tests {
		mode, ok := ParseLoadMode(tt.input)
		assert.Equal(t, tt.ok, ok, "input %q", tt.input)
		if ok {
			assert.Equal(t, tt.expected, mode, "input %q", tt.input)
		}
	}
}

func TestTableSchema_ColumnNames(t *testing.T) {
	t.Parallel()

	schema := &TableSchema{
		Table: "people",
		Columns: []ColumnSpec{
			{Name: "id", Type: ColumnTypeInteger},
			{Name: "name", Type: ColumnTypeText},
		},
	}
	assert.Equal(t, []string{"id", "name"}, schema.ColumnNames())
}
