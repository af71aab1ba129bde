package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/justin4957/zeekreport/pkg/models"
)

// ErrNoFields is returned when a TSV log never declares its columns
var ErrNoFields = errors.New("log has no #fields header")

// ParseError reports a malformed data line
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// LogParser interface for decoding a whole Zeek log into a table
type LogParser interface {
	Parse(r io.Reader) (*models.Table, error)
}

// NewParser creates a parser based on the specified format
func NewParser(format string) LogParser {
	switch format {
	case "tsv", "ascii":
		return &TSVParser{}
	case "json":
		return &JSONParser{}
	default:
		return &AutoParser{}
	}
}

// Parse decodes r, picking the format from its first non-blank line
func Parse(r io.Reader) (*models.Table, error) {
	return (&AutoParser{}).Parse(r)
}

// maxLineSize bounds a single log line; Zeek lines with long URIs exceed the
// bufio default.
const maxLineSize = 4 << 20

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return sc
}

// AutoParser sniffs JSON vs TSV output
type AutoParser struct{}

func (p *AutoParser) Parse(r io.Reader) (*models.Table, error) {
	br := bufio.NewReader(r)
sniff:
	for {
		b, err := br.Peek(1)
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to read log: %w", err)
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			br.ReadByte()
		case '{':
			return (&JSONParser{}).Parse(br)
		default:
			break sniff
		}
	}
	return (&TSVParser{}).Parse(br)
}

// TSVParser parses Zeek's default tab separated ASCII logs
type TSVParser struct{}

func (p *TSVParser) Parse(r io.Reader) (*models.Table, error) {
	table := models.NewTable(nil)
	var haveFields bool
	sep := models.DefaultSeparator

	sc := newScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r\n")

		if strings.HasPrefix(line, "#") {
			if err := p.header(table, line, &sep, &haveFields); err != nil {
				return nil, &ParseError{Line: lineNo, Msg: err.Error()}
			}
			continue
		}
		if line == "" {
			continue
		}
		if !haveFields {
			return nil, ErrNoFields
		}

		row := strings.Split(line, sep)
		if len(row) != len(table.Columns) {
			return nil, &ParseError{
				Line: lineNo,
				Msg:  fmt.Sprintf("%d columns declared, data line has %d", len(table.Columns), len(row)),
			}
		}
		table.AppendRow(row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	if !haveFields {
		return nil, ErrNoFields
	}
	table.Separator = sep
	return table, nil
}

func (p *TSVParser) header(table *models.Table, line string, sep *string, haveFields *bool) error {
	// #separator uses a space before the value since the separator itself is
	// not known yet.
	if rest, ok := strings.CutPrefix(line, "#separator "); ok {
		s, err := unescape(rest)
		if err != nil {
			return fmt.Errorf("invalid #separator: %w", err)
		}
		if s == "" {
			return errors.New("empty #separator")
		}
		*sep = s
		return nil
	}

	parts := strings.Split(line, *sep)
	switch parts[0] {
	case "#fields":
		table.SetColumns(parts[1:])
		*haveFields = true
	case "#types":
		table.Types = append([]string(nil), parts[1:]...)
	case "#path":
		if len(parts) > 1 {
			table.LogPath = parts[1]
		}
	case "#empty_field":
		if len(parts) > 1 {
			table.EmptyField = parts[1]
		}
	case "#unset_field":
		if len(parts) > 1 {
			table.UnsetField = parts[1]
		}
	}
	return nil
}

// unescape decodes the \xHH escapes Zeek writes in header values
func unescape(s string) (string, error) {
	if !strings.Contains(s, `\x`) {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && s[i+1] == 'x' {
			n, err := strconv.ParseUint(s[i+2:i+4], 16, 8)
			if err != nil {
				return "", err
			}
			b.WriteByte(byte(n))
			i += 3
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String(), nil
}
