package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
)

// Serialize runs the rest of the chain while holding lock. The registration
// graph has a single writer, so every route that reads or mutates it goes
// through here. after, when set, runs before the lock is released.
func Serialize(lock sync.Locker, after func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		lock.Lock()
		defer lock.Unlock()
		c.Next()
		if after != nil {
			after()
		}
	}
}
