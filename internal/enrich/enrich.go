package enrich

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/justin4957/zeekreport/internal/services"
	"github.com/justin4957/zeekreport/pkg/models"
)

// TimeLayout is the human readable form written back into the ts column
const TimeLayout = "2006-01-02 15:04:05"

// Error reports a value that could not be enriched
type Error struct {
	Table  string
	Column string
	Row    int
	Value  string
	Err    error
}

func (e *Error) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("enrich %s: column %q: %v", e.Table, e.Column, e.Err)
	}
	return fmt.Sprintf("enrich %s: column %q row %d value %q: %v", e.Table, e.Column, e.Row, e.Value, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var errColumnMissing = errors.New("column missing")

// PortNamer resolves a textual port to a service name
type PortNamer interface {
	Name(port string) string
}

var _ PortNamer = (*services.DB)(nil)

// Tables enriches every table in place
func Tables(tables map[string]*models.Table, ports PortNamer) error {
	for name, t := range tables {
		if err := Table(name, t, ports); err != nil {
			return err
		}
	}
	return nil
}

// Table rewrites ts as a UTC date-time string and adds dest_port_type
func Table(name string, t *models.Table, ports PortNamer) error {
	stamps, ok := t.Column(models.ColumnTimestamp)
	if !ok {
		return &Error{Table: name, Column: models.ColumnTimestamp, Row: -1, Err: errColumnMissing}
	}
	respPorts, ok := t.Column(models.ColumnRespPort)
	if !ok {
		return &Error{Table: name, Column: models.ColumnRespPort, Row: -1, Err: errColumnMissing}
	}

	formatted := make([]string, len(stamps))
	for i, v := range stamps {
		ts, err := ParseTimestamp(v)
		if err != nil {
			return &Error{Table: name, Column: models.ColumnTimestamp, Row: i, Value: v, Err: err}
		}
		formatted[i] = ts.Format(TimeLayout)
	}

	portTypes := make([]string, len(respPorts))
	for i, p := range respPorts {
		portTypes[i] = ports.Name(p)
	}

	t.SetColumn(models.ColumnTimestamp, formatted)
	t.SetColumn(models.ColumnPortType, portTypes)
	return nil
}

// ParseTimestamp accepts epoch seconds (optionally fractional) or an
// RFC 3339 string as emitted by JSON logs with ISO timestamps.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return time.Time{}, errors.New("invalid epoch value")
		}
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errors.New("not an epoch timestamp")
}
