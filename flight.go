/*
File: flight.go
Version: 1.0.0
Description: Sharded singleflight wrapper. Coalesces concurrent verdict
             analysis for the same host without one global mutex.
*/

package main

import (
	"hash/maphash"

	"golang.org/x/sync/singleflight"
)

const flightShardCount = 64

type ShardedGroup struct {
	shards [flightShardCount]singleflight.Group
	seed   maphash.Seed
}

func NewShardedGroup() *ShardedGroup {
	return &ShardedGroup{seed: maphash.MakeSeed()}
}

func (g *ShardedGroup) getShard(key string) *singleflight.Group {
	var h maphash.Hash
	h.SetSeed(g.seed)
	h.WriteString(key)
	return &g.shards[h.Sum64()&(flightShardCount-1)]
}

func (g *ShardedGroup) Do(key string, fn func() (interface{}, error)) (interface{}, error, bool) {
	return g.getShard(key).Do(key, fn)
}
