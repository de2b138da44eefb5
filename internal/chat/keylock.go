package chat

import (
	"hash/fnv"
	"sync"
)

const defaultStripes = 256

// keyedMutex serializes callers that share a key. Keys are hashed onto a
// fixed set of stripes, so unrelated keys may occasionally share a stripe
// but never a single process-wide lock.
type keyedMutex struct {
	stripes []sync.Mutex
}

func newKeyedMutex(stripes int) *keyedMutex {
	if stripes <= 0 {
		stripes = defaultStripes
	}
	return &keyedMutex{stripes: make([]sync.Mutex, stripes)}
}

// Lock locks the stripe for key and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) func() {
	mu := &k.stripes[stripe(key, len(k.stripes))]
	mu.Lock()
	return mu.Unlock
}

func stripe(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
