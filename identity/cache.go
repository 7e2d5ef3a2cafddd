package identity

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// PublicKeyCache avoids re-decoding and re-parsing a peer id's public key on
// every verification call. Implementations must be safe for concurrent use
// even though a single operation is run to completion on one goroutine —
// the cache itself is shared process-wide state across calls.
type PublicKeyCache interface {
	Get(peerId string) (*PublicKey, bool)
	Put(peerId string, pub *PublicKey)
}

// LRUCache is the default, in-process PublicKeyCache. It has no external
// dependency, used when no shared cache fleet is configured.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*PublicKey
	order    []string // least recently used first; simple and adequate at this scale
}

// NewLRUCache builds an in-process cache holding at most capacity entries.
func NewLRUCache(capacity int) *LRUCache {
	return &LRUCache{
		capacity: capacity,
		entries:  make(map[string]*PublicKey, capacity),
	}
}

func (c *LRUCache) Get(peerId string) (*PublicKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pub, ok := c.entries[peerId]
	if ok {
		c.moveToBack(peerId)
	}
	return pub, ok
}

func (c *LRUCache) Put(peerId string, pub *PublicKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[peerId]; !exists {
		if len(c.order) >= c.capacity && c.capacity > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, peerId)
	} else {
		c.moveToBack(peerId)
	}
	c.entries[peerId] = pub
}

// moveToBack marks peerId as the most recently used entry.
func (c *LRUCache) moveToBack(peerId string) {
	for i, id := range c.order {
		if id == peerId {
			c.order = append(append(c.order[:i:i], c.order[i+1:]...), peerId)
			return
		}
	}
}

// CachedExtractPublicKey is ExtractPublicKey fronted by a PublicKeyCache.
func CachedExtractPublicKey(cache PublicKeyCache, peerId string) (*PublicKey, error) {
	if cache != nil {
		if pub, ok := cache.Get(peerId); ok {
			return pub, nil
		}
	}
	pub, err := ExtractPublicKey(peerId)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache.Put(peerId, pub)
	}
	return pub, nil
}

// RedisCache backs PublicKeyCache with a shared Redis instance, for node
// fleets that want to amortize key-decode work across processes rather than
// per-process. Only the raw key material is cached — Ed25519 keys verbatim,
// secp256k1 keys re-parsed from their serialized form on Get, since
// *secp256k1.PublicKey itself isn't serializable through redis directly.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wires a redis.Client (github.com/go-redis/redis/v8) as the
// PublicKeyCache backend.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(peerId string) (*PublicKey, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	raw, err := c.client.Get(ctx, "pubkey:"+peerId).Bytes()
	if err != nil || len(raw) < 1 {
		return nil, false
	}
	switch KeyType(raw[0]) {
	case KeyTypeEd25519:
		if len(raw) != 1+32 {
			return nil, false
		}
		return &PublicKey{Type: KeyTypeEd25519, Ed25519: append([]byte(nil), raw[1:]...)}, true
	case KeyTypeSecp256k1:
		pub, err := parseSecp256k1(raw[1:])
		if err != nil {
			return nil, false
		}
		return &PublicKey{Type: KeyTypeSecp256k1, Secp256k1: pub}, true
	default:
		return nil, false
	}
}

func (c *RedisCache) Put(peerId string, pub *PublicKey) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	var raw []byte
	switch pub.Type {
	case KeyTypeEd25519:
		raw = append([]byte{byte(KeyTypeEd25519)}, pub.Ed25519...)
	case KeyTypeSecp256k1:
		raw = append([]byte{byte(KeyTypeSecp256k1)}, pub.Secp256k1.SerializeCompressed()...)
	default:
		return
	}
	_ = c.client.Set(ctx, "pubkey:"+peerId, raw, c.ttl).Err()
}
