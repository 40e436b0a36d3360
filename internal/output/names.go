package output

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// TimestampLayout stamps crawl-error table names, always in UTC.
const TimestampLayout = "20060102T150405Z"

// CrawlErrorsName names one category's table, e.g. "wp_notFound_20180102T030405Z.csv".
func CrawlErrorsName(prefix, category string, at time.Time) string {
	return fmt.Sprintf("%s%s_%s.csv", prefix, category, at.UTC().Format(TimestampLayout))
}

// RedirectNames derives the matched and unmatched table names from the input
// file's base name without its .csv extension.
func RedirectNames(inputPath string) (matched, unmatched string) {
	base := strings.TrimSuffix(filepath.Base(inputPath), ".csv")
	return "wp_redirects_" + base + ".csv", "wp_redirects_nomatch_" + base + ".csv"
}
