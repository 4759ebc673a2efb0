package endpoint

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// Metrics returns a handler that reports process runtime stats. The admin
// dashboard's debug panel polls this; message throughput lives in the
// stats API instead.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		c.JSON(http.StatusOK, gin.H{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"uptime":     time.Since(startTime).String(),
			"goroutines": runtime.NumGoroutine(),
			"memory": gin.H{
				"heap_alloc_mb": m.HeapAlloc / 1024 / 1024,
				"sys_mb":        m.Sys / 1024 / 1024,
				"heap_objects":  m.HeapObjects,
				"gc_runs":       m.NumGC,
			},
		})
	}
}
