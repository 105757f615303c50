/*
File: verdict_cache.go
Version: 1.0.0
Description: Thread-safe sharded LRU cache for URL block verdicts.
*/

package main

import (
	"container/list"
	"hash/maphash"
	"sync"
)

const verdictCacheShards = 16

type verdictEntry struct {
	key     string
	verdict BlockVerdict
}

type verdictShard struct {
	sync.Mutex
	items    map[string]*list.Element
	lruList  *list.List
	capacity int
}

type VerdictCache struct {
	shards [verdictCacheShards]*verdictShard
	seed   maphash.Seed
}

func NewVerdictCache(capacity int) *VerdictCache {
	c := &VerdictCache{
		seed: maphash.MakeSeed(),
	}
	shardCap := capacity / verdictCacheShards
	if shardCap < 1 {
		shardCap = 1
	}
	for i := 0; i < verdictCacheShards; i++ {
		c.shards[i] = &verdictShard{
			items:    make(map[string]*list.Element),
			lruList:  list.New(),
			capacity: shardCap,
		}
	}
	return c
}

func (c *VerdictCache) getShard(key string) *verdictShard {
	var h maphash.Hash
	h.SetSeed(c.seed)
	h.WriteString(key)
	return c.shards[h.Sum64()&(verdictCacheShards-1)]
}

func (c *VerdictCache) Get(key string) (BlockVerdict, bool) {
	shard := c.getShard(key)
	shard.Lock()
	defer shard.Unlock()

	if el, ok := shard.items[key]; ok {
		shard.lruList.MoveToFront(el)
		return el.Value.(*verdictEntry).verdict, true
	}
	return BlockVerdict{}, false
}

func (c *VerdictCache) Add(key string, verdict BlockVerdict) {
	shard := c.getShard(key)
	shard.Lock()
	defer shard.Unlock()

	if el, ok := shard.items[key]; ok {
		shard.lruList.MoveToFront(el)
		el.Value.(*verdictEntry).verdict = verdict
		return
	}

	if shard.lruList.Len() >= shard.capacity {
		if oldest := shard.lruList.Back(); oldest != nil {
			shard.lruList.Remove(oldest)
			delete(shard.items, oldest.Value.(*verdictEntry).key)
		}
	}

	el := shard.lruList.PushFront(&verdictEntry{key: key, verdict: verdict})
	shard.items[key] = el
}

func (c *VerdictCache) Flush() {
	for _, shard := range c.shards {
		shard.Lock()
		shard.items = make(map[string]*list.Element)
		shard.lruList.Init()
		shard.Unlock()
	}
}
