package tipy

import (
	"sync"
)

// queryTemplateCache caches base query strings per table.
// Keys are in the format "tableName:queryType" (e.g., "users:select").
var queryTemplateCache sync.Map

// QueryTemplateType represents the type of query template.
type QueryTemplateType string

const (
	QueryTemplateSelect QueryTemplateType = "select"
	QueryTemplateCount  QueryTemplateType = "count"
)

func cachedTemplate(table string, kind QueryTemplateType, build func() string) string {
	key := table + ":" + string(kind)
	if cached, ok := queryTemplateCache.Load(key); ok {
		return cached.(string)
	}
	query := build()
	queryTemplateCache.Store(key, query)
	return query
}

// selectBase returns "SELECT * FROM table".
func selectBase(table string) string {
	return cachedTemplate(table, QueryTemplateSelect, func() string {
		return "SELECT * FROM " + table
	})
}

// countBase returns "SELECT COUNT(*) AS count FROM table".
func countBase(table string) string {
	return cachedTemplate(table, QueryTemplateCount, func() string {
		return "SELECT COUNT(*) AS count FROM " + table
	})
}

// ClearQueryTemplateCache clears all cached query templates.
func ClearQueryTemplateCache() {
	queryTemplateCache.Range(func(key, _ any) bool {
		queryTemplateCache.Delete(key)
		return true
	})
}
