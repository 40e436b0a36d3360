// Package report flattens crawl error samples into tabular rows and drives the
// category x platform fetch loop that produces one table per category.
package report

import (
	"strconv"
	"strings"

	"github.com/JakeFAU/gsc-crawl-errors/internal/searchconsole"
)

// CrawlErrorRow is one output line of a crawl error table.
type CrawlErrorRow struct {
	PageURL       string
	Platform      string
	LastCrawled   string
	FirstDetected string
	ResponseCode  string
	LinkedFrom    string
}

// HeaderRow is emitted ahead of the data rows of every table.
var HeaderRow = CrawlErrorRow{
	PageURL:       "pageUrl",
	Platform:      "platform",
	LastCrawled:   "last_crawled",
	FirstDetected: "first_detected",
	ResponseCode:  "responseCode",
	LinkedFrom:    "linkedFrom",
}

// Values returns the row in column order.
func (r CrawlErrorRow) Values() []string {
	return []string{r.PageURL, r.Platform, r.LastCrawled, r.FirstDetected, r.ResponseCode, r.LinkedFrom}
}

// Records converts rows into string records for tabular serialization.
func Records(rows []CrawlErrorRow) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Values())
	}
	return out
}

// Flatten converts a response page into HeaderRow followed by one row per
// non-nil sample, in response order. A nil page yields the header alone.
// Missing response codes and referrer lists become empty strings.
func Flatten(page *searchconsole.SamplesPage, platform searchconsole.Platform) []CrawlErrorRow {
	rows := []CrawlErrorRow{HeaderRow}
	if page == nil {
		return rows
	}
	for _, s := range page.Samples {
		if s == nil {
			continue
		}
		rows = append(rows, CrawlErrorRow{
			PageURL:       s.PageURL,
			Platform:      string(platform),
			LastCrawled:   s.LastCrawled,
			FirstDetected: s.FirstDetected,
			ResponseCode:  responseCode(s),
			LinkedFrom:    linkedFrom(s),
		})
	}
	return rows
}

func responseCode(s *searchconsole.ErrorSample) string {
	if s.ResponseCode == nil {
		return ""
	}
	return strconv.Itoa(*s.ResponseCode)
}

func linkedFrom(s *searchconsole.ErrorSample) string {
	if s.URLDetails == nil {
		return ""
	}
	return strings.Join(s.URLDetails.LinkedFromURLs, ", ")
}
