package models

import (
	"time"
)

// CounterName identifies one of the report counters
type CounterName string

const (
	CounterNumberOfLogs    CounterName = "number_of_logs"
	CounterMozillaRequests CounterName = "mozilla_based_requests"
	CounterCommunications  CounterName = "unique_communications"
	CounterAmazonFolders   CounterName = "amazon_folders"
	CounterNonDomainHosts  CounterName = "non_domain_hosts"
	CounterBannedHosts     CounterName = "banned_hosts_detected"
	CounterGoogleDetected  CounterName = "google_was_detected"
)

// CounterOrder is the order counters appear in the report
var CounterOrder = []CounterName{
	CounterNumberOfLogs,
	CounterMozillaRequests,
	CounterCommunications,
	CounterAmazonFolders,
	CounterNonDomainHosts,
	CounterBannedHosts,
	CounterGoogleDetected,
}

// Counter is a single named total
type Counter struct {
	Name  CounterName `json:"name"`
	Value int         `json:"value"`
}

// TableSummary holds per-capture totals
type TableSummary struct {
	Name     string    `json:"name"`
	Rows     int       `json:"rows"`
	Counters []Counter `json:"counters"`
}

// Summary is the result of one analysis run
type Summary struct {
	RunID         string         `json:"run_id"`
	Archive       string         `json:"archive"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Counters      []Counter      `json:"counters"`
	PortServices  []string       `json:"port_services"`
	DistinctPairs int            `json:"distinct_pairs"`
	Tables        []TableSummary `json:"tables,omitempty"`
	ReportPath    string         `json:"report_path,omitempty"`
}

// Get returns the value of a counter, zero if absent
func (s *Summary) Get(name CounterName) int {
	for _, c := range s.Counters {
		if c.Name == name {
			return c.Value
		}
	}
	return 0
}
