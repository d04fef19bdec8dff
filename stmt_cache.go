package tipy

import (
	"container/list"
	"database/sql"
)

// StmtCache is an LRU cache of statements prepared on the DB's connection.
// When it reaches capacity the least recently used statement is closed.
//
// The cache belongs to a single DB and shares its single-flow contract, so it
// is not guarded for concurrent use.
type StmtCache struct {
	capacity int
	items    map[string]*list.Element
	lruList  *list.List
}

type cacheEntry struct {
	query string
	stmt  *sql.Stmt
}

// NewStmtCache creates a statement cache with the given capacity.
// A capacity of 0 or a negative value defaults to 100.
func NewStmtCache(capacity int) *StmtCache {
	if capacity <= 0 {
		capacity = 100
	}
	return &StmtCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lruList:  list.New(),
	}
}

// Get returns the statement prepared for query, or nil.
func (c *StmtCache) Get(query string) *sql.Stmt {
	if el, ok := c.items[query]; ok {
		c.lruList.MoveToFront(el)
		return el.Value.(*cacheEntry).stmt
	}
	return nil
}

// Put stores stmt for query, replacing and closing any previous statement.
func (c *StmtCache) Put(query string, stmt *sql.Stmt) {
	if el, ok := c.items[query]; ok {
		c.evict(el)
	}

	if len(c.items) >= c.capacity {
		if back := c.lruList.Back(); back != nil {
			c.evict(back)
		}
	}

	c.items[query] = c.lruList.PushFront(&cacheEntry{query: query, stmt: stmt})
}

func (c *StmtCache) evict(el *list.Element) {
	entry := el.Value.(*cacheEntry)
	c.lruList.Remove(el)
	delete(c.items, entry.query)
	entry.close()
}

func (e *cacheEntry) close() {
	if e.stmt != nil {
		_ = e.stmt.Close()
	}
}

// Clear closes all cached statements.
func (c *StmtCache) Clear() {
	for _, el := range c.items {
		el.Value.(*cacheEntry).close()
	}
	c.items = make(map[string]*list.Element)
	c.lruList.Init()
}

// Len returns the current number of cached statements.
func (c *StmtCache) Len() int {
	return len(c.items)
}
