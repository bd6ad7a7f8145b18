// Package cache provides the in-process read cache the graph layer puts
// in front of its node store.
package cache

import (
	"fmt"
	"time"

	"github.com/ndanilov/claimwatch/internal/model"
)

// Cache defines the interface for node caching
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration)
	Delete(key string)
	Clear()
}

// NodeKey generates a cache key for a graph node reference
func NodeKey(ref model.NodeRef) string {
	return fmt.Sprintf("claimwatch:v1:%s", ref)
}
