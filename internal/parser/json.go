package parser

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/valyala/fastjson"

	"github.com/justin4957/zeekreport/pkg/models"
)

// JSONParser parses Zeek logs written with LogAscii::use_json, one object per line
type JSONParser struct {
	pool fastjson.ParserPool
}

func (p *JSONParser) Parse(r io.Reader) (*models.Table, error) {
	fp := p.pool.Get()
	defer p.pool.Put(fp)

	var (
		columns []string
		index   = make(map[string]int)
		records []map[string]string
	)

	sc := newScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		v, err := fp.Parse(line)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("failed to parse JSON log: %v", err)}
		}
		obj, err := v.Object()
		if err != nil {
			return nil, &ParseError{Line: lineNo, Msg: "JSON log line is not an object"}
		}

		rec := make(map[string]string, obj.Len())
		obj.Visit(func(key []byte, val *fastjson.Value) {
			k := string(key)
			if _, seen := index[k]; !seen {
				index[k] = len(columns)
				columns = append(columns, k)
			}
			rec[k] = jsonText(val)
		})
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}

	table := models.NewTable(columns)
	for _, rec := range records {
		row := make([]string, len(columns))
		for i, name := range columns {
			row[i] = rec[name]
		}
		table.AppendRow(row)
	}
	return table, nil
}

// jsonText renders a JSON value the way the ASCII writer would print it
func jsonText(v *fastjson.Value) string {
	switch v.Type() {
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		f := v.GetFloat64()
		return strconv.FormatFloat(f, 'f', -1, 64)
	case fastjson.TypeTrue:
		return "T"
	case fastjson.TypeFalse:
		return "F"
	case fastjson.TypeNull:
		return ""
	case fastjson.TypeArray:
		items := v.GetArray()
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = jsonText(item)
		}
		return strings.Join(parts, ",")
	default:
		return v.String()
	}
}
