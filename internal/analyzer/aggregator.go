package analyzer

import (
	"sort"

	"go.uber.org/zap"

	"github.com/justin4957/zeekreport/internal/config"
	"github.com/justin4957/zeekreport/pkg/models"
)

// maxLoggedMatches caps the rows printed per rule in verbose mode
const maxLoggedMatches = 20

// Aggregator computes the report counters across all tables
type Aggregator struct {
	rules   []Rule
	pairs   *GroupRule
	logger  *zap.Logger
	verbose bool
}

// NewAggregator creates a new aggregator
func NewAggregator(cfg config.AnalysisConfig, logger *zap.Logger) (*Aggregator, error) {
	rules, err := NewRules(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		rules: rules,
		pairs: &GroupRule{
			name:    models.CounterCommunications,
			columns: []string{models.ColumnOrigHost, models.ColumnRespHost},
		},
		logger:  logger,
		verbose: cfg.Verbose,
	}, nil
}

// Aggregate scans every table once. It does not modify the tables, so
// repeated calls on the same input return identical counters.
func (a *Aggregator) Aggregate(tables map[string]*models.Table) *models.Summary {
	totals := make(map[models.CounterName]int, len(a.rules))
	services := make(map[string]struct{})
	pairs := make(map[string]struct{})
	summary := &models.Summary{
		Tables: make([]models.TableSummary, 0, len(tables)),
	}

	for _, name := range SortedNames(tables) {
		t := tables[name]
		ts := models.TableSummary{
			Name:     name,
			Rows:     t.Len(),
			Counters: make([]models.Counter, 0, len(a.rules)),
		}

		for _, rule := range a.rules {
			n := rule.Count(t)
			totals[rule.Name()] += n
			ts.Counters = append(ts.Counters, models.Counter{Name: rule.Name(), Value: n})
			if a.verbose {
				a.logFindings(name, t, rule, n)
			}
		}

		if values, ok := t.Column(models.ColumnPortType); ok {
			for _, v := range values {
				services[v] = struct{}{}
			}
		}
		for key := range a.pairs.Groups(t) {
			pairs[key] = struct{}{}
		}

		summary.Tables = append(summary.Tables, ts)
	}

	summary.Counters = make([]models.Counter, 0, len(a.rules))
	for _, rule := range a.rules {
		summary.Counters = append(summary.Counters, models.Counter{
			Name:  rule.Name(),
			Value: totals[rule.Name()],
		})
	}

	summary.PortServices = make([]string, 0, len(services))
	for s := range services {
		summary.PortServices = append(summary.PortServices, s)
	}
	sort.Strings(summary.PortServices)
	summary.DistinctPairs = len(pairs)

	return summary
}

func (a *Aggregator) logFindings(table string, t *models.Table, rule Rule, n int) {
	a.logger.Debug("rule evaluated",
		zap.String("table", table),
		zap.String("rule", string(rule.Name())),
		zap.Int("count", n),
	)

	m, ok := rule.(Matcher)
	if !ok || n == 0 {
		return
	}
	rows := m.Matches(t)
	if len(rows) > maxLoggedMatches {
		rows = rows[:maxLoggedMatches]
	}
	for _, i := range rows {
		a.logger.Debug("rule matched",
			zap.String("table", table),
			zap.String("rule", string(rule.Name())),
			zap.String("orig_h", t.Value(i, models.ColumnOrigHost)),
			zap.String("resp_h", t.Value(i, models.ColumnRespHost)),
			zap.String("method", t.Value(i, models.ColumnMethod)),
			zap.String("host", t.Value(i, models.ColumnHost)),
		)
	}
}

// SortedNames returns table names in a stable order
func SortedNames(tables map[string]*models.Table) []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
