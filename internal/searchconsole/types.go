// Package searchconsole defines the crawl-error reporting domain types and the
// client used to list crawl-error samples from the Search Console API.
package searchconsole

import (
	"context"
	"fmt"
)

// Category is the crawl error category filter accepted by the reporting API.
type Category string

// Crawl error categories in the order reports are produced.
const (
	CategoryAuthPermissions   Category = "authPermissions"
	CategoryFlashContent      Category = "flashContent"
	CategoryManyToOneRedirect Category = "manyToOneRedirect"
	CategoryNotFollowed       Category = "notFollowed"
	CategoryNotFound          Category = "notFound"
	CategoryOther             Category = "other"
	CategoryRoboted           Category = "roboted"
	CategoryServerError       Category = "serverError"
	CategorySoft404           Category = "soft404"
)

// Platform is the user-agent class that made the crawl request.
type Platform string

// Platforms in the order they are queried for each category.
const (
	PlatformMobile         Platform = "mobile"
	PlatformSmartphoneOnly Platform = "smartphoneOnly"
	PlatformWeb            Platform = "web"
)

// DefaultCategories is the ordered category enumeration used when none is requested.
var DefaultCategories = []Category{
	CategoryAuthPermissions,
	CategoryFlashContent,
	CategoryManyToOneRedirect,
	CategoryNotFollowed,
	CategoryNotFound,
	CategoryOther,
	CategoryRoboted,
	CategoryServerError,
	CategorySoft404,
}

// DefaultPlatforms is the ordered platform enumeration used when none is requested.
var DefaultPlatforms = []Platform{
	PlatformMobile,
	PlatformSmartphoneOnly,
	PlatformWeb,
}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range DefaultCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown crawl error category %q", s)
}

// ParsePlatform validates a platform name.
func ParsePlatform(s string) (Platform, error) {
	for _, p := range DefaultPlatforms {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// ReportRequest identifies one category/platform query against a property.
type ReportRequest struct {
	PropertyURI string
	Category    Category
	Platform    Platform
}

// URLDetails carries optional referrer information for a sample.
type URLDetails struct {
	ContainingSitemaps []string `json:"containingSitemaps,omitempty"`
	LinkedFromURLs     []string `json:"linkedFromUrls,omitempty"`
}

// ErrorSample is one crawl error record returned by the API.
type ErrorSample struct {
	PageURL       string      `json:"pageUrl"`
	LastCrawled   string      `json:"last_crawled"`
	FirstDetected string      `json:"first_detected"`
	ResponseCode  *int        `json:"responseCode,omitempty"`
	URLDetails    *URLDetails `json:"urlDetails,omitempty"`
}

// SamplesPage is a single response from the list endpoint. Entries may be nil.
type SamplesPage struct {
	Samples []*ErrorSample `json:"urlCrawlErrorSample,omitempty"`
}

// Client lists crawl error samples for a site, category, and platform.
// Failures that came from the API carry their HTTP status as a *googleapi.Error.
type Client interface {
	ListCrawlErrorSamples(ctx context.Context, req ReportRequest) (*SamplesPage, error)
}
