package http

import "github.com/gin-gonic/gin"

// NoCache stamps every response so intermediaries and browser XHR caches
// never replay a poll result.
func NoCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store, no-cache, must-revalidate, post-check=0, pre-check=0")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.Next()
	}
}
