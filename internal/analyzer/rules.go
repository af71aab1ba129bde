package analyzer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/justin4957/zeekreport/internal/config"
	"github.com/justin4957/zeekreport/pkg/models"
)

// Rule computes one counter's contribution from a single table
type Rule interface {
	Name() models.CounterName
	Count(t *models.Table) int
}

// Matcher is implemented by rules that select individual rows
type Matcher interface {
	Matches(t *models.Table) []int
}

// NewRules builds the counter rules in report order
func NewRules(cfg config.AnalysisConfig) ([]Rule, error) {
	ipv4, err := regexp.Compile(cfg.NoDomainPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid no-domain pattern %q: %w", cfg.NoDomainPattern, err)
	}

	banned := make(map[string]struct{}, len(cfg.BannedHosts))
	for _, h := range cfg.BannedHosts {
		banned[h] = struct{}{}
	}

	return []Rule{
		&LogCountRule{},
		&RowRule{
			name:   models.CounterMozillaRequests,
			column: models.ColumnUserAgent,
			match: func(v string) bool {
				return strings.Contains(v, cfg.UserAgentSignature)
			},
		},
		&GroupRule{
			name:    models.CounterCommunications,
			columns: []string{models.ColumnOrigHost, models.ColumnRespHost},
		},
		&GroupRule{
			name:    models.CounterAmazonFolders,
			columns: []string{models.ColumnFilename},
		},
		&RowRule{
			name:   models.CounterNonDomainHosts,
			column: models.ColumnHost,
			match:  ipv4.MatchString,
		},
		&RowRule{
			name:   models.CounterBannedHosts,
			column: models.ColumnHost,
			match: func(v string) bool {
				_, ok := banned[v]
				return ok
			},
		},
		&RowRule{
			name:   models.CounterGoogleDetected,
			column: models.ColumnHost,
			match: func(v string) bool {
				return strings.Contains(v, cfg.HostSubstring)
			},
		},
	}, nil
}

// LogCountRule counts tables
type LogCountRule struct{}

func (r *LogCountRule) Name() models.CounterName {
	return models.CounterNumberOfLogs
}

func (r *LogCountRule) Count(t *models.Table) int {
	return 1
}

// RowRule counts rows whose column value satisfies a predicate. A table
// without the column matches nothing.
type RowRule struct {
	name   models.CounterName
	column string
	match  func(string) bool
}

func (r *RowRule) Name() models.CounterName {
	return r.name
}

func (r *RowRule) Count(t *models.Table) int {
	return len(r.Matches(t))
}

func (r *RowRule) Matches(t *models.Table) []int {
	idx := t.ColumnIndex(r.column)
	if idx < 0 {
		return nil
	}
	var rows []int
	for i, row := range t.Rows {
		if idx < len(row) && r.match(row[idx]) {
			rows = append(rows, i)
		}
	}
	return rows
}

// GroupRule groups rows by key columns and sums the group sizes. Every
// key column must exist for the table to contribute.
type GroupRule struct {
	name    models.CounterName
	columns []string
}

func (r *GroupRule) Name() models.CounterName {
	return r.name
}

func (r *GroupRule) Count(t *models.Table) int {
	total := 0
	for _, n := range r.Groups(t) {
		total += n
	}
	return total
}

// Groups returns the size of each distinct key
func (r *GroupRule) Groups(t *models.Table) map[string]int {
	idx := make([]int, len(r.columns))
	for i, c := range r.columns {
		idx[i] = t.ColumnIndex(c)
		if idx[i] < 0 {
			return nil
		}
	}

	groups := make(map[string]int)
	key := make([]string, len(idx))
	for _, row := range t.Rows {
		for i, ci := range idx {
			key[i] = ""
			if ci < len(row) {
				key[i] = row[ci]
			}
		}
		groups[strings.Join(key, "\x00")]++
	}
	return groups
}
