package models

// Table is the decoded form of a single Zeek log, one per capture folder
type Table struct {
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	LogPath    string     `json:"log_path,omitempty"`
	Separator  string     `json:"separator"`
	EmptyField string     `json:"empty_field,omitempty"`
	UnsetField string     `json:"unset_field,omitempty"`
	Columns    []string   `json:"columns"`
	Types      []string   `json:"types,omitempty"`
	Rows       [][]string `json:"rows"`

	index map[string]int
}

// Zeek HTTP log columns the analysis relies on
const (
	ColumnTimestamp  = "ts"
	ColumnOrigHost   = "id.orig_h"
	ColumnRespHost   = "id.resp_h"
	ColumnRespPort   = "id.resp_p"
	ColumnUserAgent  = "user_agent"
	ColumnHost       = "host"
	ColumnFilename   = "filename"
	ColumnMethod     = "method"
	ColumnPortType   = "dest_port_type"
	DefaultSeparator = "\t"
)

// NewTable creates an empty table with the given columns
func NewTable(columns []string) *Table {
	t := &Table{
		Separator: DefaultSeparator,
		Columns:   append([]string(nil), columns...),
		Rows:      make([][]string, 0),
	}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, name := range t.Columns {
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of a column, or -1
func (t *Table) ColumnIndex(name string) int {
	if t.index == nil || len(t.index) != len(t.Columns) {
		t.reindex()
	}
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// HasColumn reports whether the table declares name
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Value returns the cell for row i in column name. Missing columns read as "".
func (t *Table) Value(i int, name string) string {
	idx := t.ColumnIndex(name)
	if idx < 0 || i < 0 || i >= len(t.Rows) || idx >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][idx]
}

// Column returns a copy of every value in column name
func (t *Table) Column(name string) ([]string, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			values[i] = row[idx]
		}
	}
	return values, true
}

// SetColumns replaces the declared column names
func (t *Table) SetColumns(columns []string) {
	t.Columns = append([]string(nil), columns...)
	t.reindex()
}

// SetColumn replaces the values of an existing column or appends a new one.
// values must have one entry per row.
func (t *Table) SetColumn(name string, values []string) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		t.Columns = append(t.Columns, name)
		if len(t.Types) > 0 {
			t.Types = append(t.Types, "string")
		}
		idx = len(t.Columns) - 1
		t.index[name] = idx
	}
	for i := range t.Rows {
		for len(t.Rows[i]) <= idx {
			t.Rows[i] = append(t.Rows[i], "")
		}
		if i < len(values) {
			t.Rows[i][idx] = values[i]
		}
	}
}

// AppendRow adds a data row
func (t *Table) AppendRow(row []string) {
	t.Rows = append(t.Rows, row)
}
