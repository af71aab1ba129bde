package services

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Unknown is returned for any port that cannot be resolved
const Unknown = "Unknown"

// SystemPath is the services(5) database consulted first
const SystemPath = "/etc/services"

//go:embed services.txt
var fallback string

// DB maps port numbers to service names
type DB struct {
	tcp map[int]string
	any map[int]string
}

// Load builds a DB from the system services file, falling back to the
// embedded table for ports the system file does not know.
func Load() *DB {
	db := Embedded()
	f, err := os.Open(SystemPath)
	if err != nil {
		return db
	}
	defer f.Close()

	sys, err := Parse(f)
	if err != nil {
		return db
	}
	sys.merge(db)
	return sys
}

// Embedded returns a DB built only from the bundled table
func Embedded() *DB {
	db, err := Parse(strings.NewReader(fallback))
	if err != nil {
		panic(fmt.Sprintf("services: embedded table: %v", err))
	}
	return db
}

// Parse reads a services(5) formatted database. The first entry seen for a
// port wins; tcp entries take precedence over other protocols.
func Parse(r io.Reader) (*DB, error) {
	db := &DB{
		tcp: make(map[int]string, 256),
		any: make(map[int]string, 256),
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		portStr, proto, ok := strings.Cut(fields[1], "/")
		if !ok {
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 0 || port > 65535 {
			continue
		}

		name := fields[0]
		if proto == "tcp" {
			if _, exists := db.tcp[port]; !exists {
				db.tcp[port] = name
			}
		}
		if _, exists := db.any[port]; !exists {
			db.any[port] = name
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read services database: %w", err)
	}
	return db, nil
}

func (db *DB) merge(other *DB) {
	for port, name := range other.tcp {
		if _, ok := db.tcp[port]; !ok {
			db.tcp[port] = name
		}
	}
	for port, name := range other.any {
		if _, ok := db.any[port]; !ok {
			db.any[port] = name
		}
	}
}

// Lookup resolves a numeric port
func (db *DB) Lookup(port int) (string, bool) {
	if port < 0 || port > 65535 {
		return "", false
	}
	if name, ok := db.tcp[port]; ok {
		return name, true
	}
	name, ok := db.any[port]
	return name, ok
}

// Name resolves a port given as text, returning Unknown on any failure
func (db *DB) Name(port string) string {
	n, err := strconv.Atoi(strings.TrimSpace(port))
	if err != nil {
		return Unknown
	}
	if name, ok := db.Lookup(n); ok {
		return name
	}
	return Unknown
}

// Len returns the number of distinct ports known
func (db *DB) Len() int {
	return len(db.any)
}
