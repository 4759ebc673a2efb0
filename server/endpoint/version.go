package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Anyuluo996/BotShepherd/version"
)

// Version reports build information. version.Info carries its own JSON
// shape, ldflags values merged with whatever the build recorded.
func Version() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Get())
	}
}
