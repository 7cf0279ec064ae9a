package model

import (
	"net/url"
	"strings"
)

const (
	// AllFilter is the canonical value of an unset filter.
	AllFilter = "all"

	cacheKeyPrefix = "widget:"
	keySeparator   = ":"
)

type Filters struct {
	Platform string `json:"platform"`
	Status   string `json:"status"`
}

// Normalize trims the values and maps empty or "all" (any case) to AllFilter,
// so every spelling of "no filter" addresses the same cache entry.
func (f Filters) Normalize() Filters {
	return Filters{Platform: normalizeFilter(f.Platform), Status: normalizeFilter(f.Status)}
}

// WithDefaults fills unset values from the widget defaults.
func (f Filters) WithDefaults(platform, status string) Filters {
	f = f.Normalize()
	if f.IsAll(f.Platform) {
		f.Platform = normalizeFilter(platform)
	}
	if f.IsAll(f.Status) {
		f.Status = normalizeFilter(status)
	}
	return f
}

func (f Filters) IsAll(value string) bool {
	return normalizeFilter(value) == AllFilter
}

func normalizeFilter(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, AllFilter) {
		return AllFilter
	}
	return value
}

// CacheKey builds "widget:<id>:<platform>:<status>". Every segment is query-escaped,
// which keeps the key collision-free and free of redis glob metacharacters.
func CacheKey(widgetID string, f Filters) string {
	f = f.Normalize()

	var sb strings.Builder
	sb.Grow(len(cacheKeyPrefix) + len(widgetID) + len(f.Platform) + len(f.Status) + 2)
	sb.WriteString(WidgetKeyPrefix(widgetID))
	sb.WriteString(url.QueryEscape(f.Platform))
	sb.WriteString(keySeparator)
	sb.WriteString(url.QueryEscape(f.Status))
	return sb.String()
}

// WidgetKeyPrefix is the common prefix of all cache keys of one widget.
func WidgetKeyPrefix(widgetID string) string {
	return cacheKeyPrefix + url.QueryEscape(widgetID) + keySeparator
}
