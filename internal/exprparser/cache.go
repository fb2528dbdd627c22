package exprparser

import (
	"strings"
	"sync"

	"github.com/dgryski/go-farm"

	"framexpr/internal/bytecode"
	"framexpr/internal/model"
)

// Cache memoizes compiled chunks by a content hash of (normalized text,
// owning aspect ID, scope signature), so recompiling an aspect whose text
// and scope are unchanged (e.g. after editing only its display name)
// reuses the earlier chunk. Because the owning aspect's ID is part of the
// key, two aspects with identical text compile to separate chunks.
type Cache struct {
	mu    sync.RWMutex
	byKey map[uint64]*bytecode.Chunk
}

func NewCache() *Cache {
	return &Cache{byKey: make(map[uint64]*bytecode.Chunk)}
}

// Key hashes text against the owning aspect's ID and the identifiers of
// the aspects visible in scope, so two structurally identical expressions
// compiled for different aspects or against different scopes never collide.
func Key(text string, scope []*model.Aspect, self *model.Aspect) uint64 {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(text))
	b.WriteByte(0)
	if self != nil {
		b.WriteString(self.ID)
	}
	b.WriteByte(0)
	for _, a := range scope {
		b.WriteString(a.ID)
		b.WriteByte(',')
	}
	return farm.Hash64([]byte(b.String()))
}

func (c *Cache) Get(key uint64) (*bytecode.Chunk, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	chunk, ok := c.byKey[key]
	return chunk, ok
}

func (c *Cache) Put(key uint64, chunk *bytecode.Chunk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey[key] = chunk
}

// CompileCached compiles text through Compile unless an identically-keyed
// chunk is already cached.
func CompileCached(cache *Cache, g *model.Graph, scope []*model.Aspect, self *model.Aspect, text string, staticOf StaticLookup) (*bytecode.Chunk, error) {
	key := Key(text, scope, self)
	if cache != nil {
		if chunk, ok := cache.Get(key); ok {
			return chunk, nil
		}
	}
	chunk, err := Compile(g, scope, self, text, staticOf)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache.Put(key, chunk)
	}
	return chunk, nil
}
