// Package redirect resolves legacy URLs to replacement paths through an
// ordered, first-match-wins table of substring patterns.
package redirect

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// Rule maps a URL fragment to its replacement path.
type Rule struct {
	Pattern     string
	Destination string
}

// Table is an immutable, ordered list of rules.
type Table struct {
	rules []Rule
}

// NewTable builds a Table from rules in declaration order. A pattern declared
// twice keeps its first position and takes the later destination, the way an
// insertion-ordered map would.
func NewTable(rules []Rule) *Table {
	out := make([]Rule, 0, len(rules))
	seen := make(map[string]int, len(rules))
	for _, r := range rules {
		if i, ok := seen[r.Pattern]; ok {
			out[i].Destination = r.Destination
			continue
		}
		seen[r.Pattern] = len(out)
		out = append(out, r)
	}
	return &Table{rules: out}
}

// Resolve returns the destination of the first rule whose pattern occurs
// anywhere in url. Matching is plain substring containment.
func (t *Table) Resolve(url string) (string, bool) {
	for _, r := range t.rules {
		if strings.Contains(url, r.Pattern) {
			return r.Destination, true
		}
	}
	return "", false
}

// Len reports the number of rules.
func (t *Table) Len() int {
	return len(t.rules)
}

// Rules returns a copy of the rules in resolution order.
func (t *Table) Rules() []Rule {
	return append([]Rule(nil), t.rules...)
}

// LoadTable reads a two-column mapping file. The first line is a header and
// is discarded; every following line is split on commas into pattern and
// destination. Blank lines are ignored. A rule with an empty pattern is kept
// and matches every URL that reaches it.
func LoadTable(r io.Reader, logger *zap.Logger) (*Table, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	scanner := bufio.NewScanner(r)
	var rules []Rule
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo == 1 {
			continue
		}
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 2 {
			return nil, fmt.Errorf("redirect map line %d: expected pattern,destination", lineNo)
		}
		if fields[0] == "" {
			logger.Warn("redirect rule with empty pattern matches every URL", zap.Int("line", lineNo))
		}
		logger.Debug("storing redirect", zap.String("pattern", fields[0]), zap.String("destination", fields[1]))
		rules = append(rules, Rule{Pattern: fields[0], Destination: fields[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read redirect map: %w", err)
	}
	return NewTable(rules), nil
}
