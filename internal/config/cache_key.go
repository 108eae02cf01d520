package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionSnapshotKey returns the durable key holding the persisted session snapshot.
// The edge gate reads the same key.
func (r *CacheKeyStruct) SessionSnapshotKey() string {
	return "auth-storage"
}

// ResetGrantKey returns the key of a pending password reset grant.
func (r *CacheKeyStruct) ResetGrantKey(grant string) string {
	return fmt.Sprintf("reset:%s", grant)
}

// ResetGrantPrefix is the key prefix shared by all reset grants.
func (r *CacheKeyStruct) ResetGrantPrefix() string {
	return "reset:"
}

var CacheKey = NewCacheKeyStruct()
