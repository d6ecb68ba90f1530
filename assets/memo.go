package assets

import (
	"crypto/sha256"
	"sync"
	"time"
)

// defaultMemoEntries 是缓存的缺省条目上限。
const defaultMemoEntries = 256

type memoKey [sha256.Size]byte

type memoEntry struct {
	res     result
	expires time.Time
}

// memo 缓存解码结果。键是地址的 SHA-256 摘要，data: URI 不会以原文常驻内存。
// 写入时清理过期条目；仍超出上限时淘汰最早过期的条目。
type memo struct {
	mu      sync.Mutex
	entries map[memoKey]memoEntry
	limit   int
	now     func() time.Time
}

func newMemo(limit int) *memo {
	if limit <= 0 {
		limit = defaultMemoEntries
	}
	return &memo{entries: make(map[memoKey]memoEntry), limit: limit, now: time.Now}
}

func (m *memo) get(src string) (result, bool) {
	key := sha256.Sum256([]byte(src))
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return result{}, false
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return result{}, false
	}
	return e.res, true
}

func (m *memo) put(src string, res result, ttl time.Duration) {
	key := sha256.Sum256([]byte(src))
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	if _, ok := m.entries[key]; !ok {
		for len(m.entries) >= m.limit {
			m.evictOldest()
		}
	}
	m.entries[key] = memoEntry{res: res, expires: now.Add(ttl)}
}

func (m *memo) evictOldest() {
	var (
		oldest memoKey
		at     time.Time
		found  bool
	)
	for k, e := range m.entries {
		if !found || e.expires.Before(at) {
			oldest, at, found = k, e.expires, true
		}
	}
	delete(m.entries, oldest)
}

func (m *memo) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
