package identity

import (
	"crypto/ed25519"
	"testing"
)

func TestLRUCacheEvictsOldestOnOverflow(t *testing.T) {
	c := NewLRUCache(2)
	pub1, _, _ := ed25519.GenerateKey(nil)
	pub2, _, _ := ed25519.GenerateKey(nil)
	pub3, _, _ := ed25519.GenerateKey(nil)

	k1 := &PublicKey{Type: KeyTypeEd25519, Ed25519: pub1}
	k2 := &PublicKey{Type: KeyTypeEd25519, Ed25519: pub2}
	k3 := &PublicKey{Type: KeyTypeEd25519, Ed25519: pub3}

	c.Put("a", k1)
	c.Put("b", k2)
	c.Put("c", k3)

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected \"a\" to be evicted once capacity was exceeded")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatalf("expected \"b\" to survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatalf("expected \"c\" to survive")
	}
}

func TestCachedExtractPublicKeyPopulatesCache(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	peerId := NewEd25519PeerId(pub)

	cache := NewLRUCache(8)
	if _, ok := cache.Get(peerId); ok {
		t.Fatalf("cache should start empty")
	}

	pk, err := CachedExtractPublicKey(cache, peerId)
	if err != nil {
		t.Fatalf("CachedExtractPublicKey: %v", err)
	}
	if pk.Type != KeyTypeEd25519 {
		t.Fatalf("unexpected key type")
	}

	cached, ok := cache.Get(peerId)
	if !ok {
		t.Fatalf("expected peer id to be cached after first extraction")
	}
	if string(cached.Ed25519) != string(pk.Ed25519) {
		t.Fatalf("cached key does not match extracted key")
	}
}
