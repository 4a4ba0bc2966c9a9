package util

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// ParseInt parses a string to an integer, returning defaultValue if parsing fails
func ParseInt(s string, defaultValue int) int {
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	return defaultValue
}

// Pagination reads limit and offset query parameters. Clamping to the
// allowed range is left to the repository.
func Pagination(c *gin.Context, defaultLimit int) (limit, offset int) {
	return ParseInt(c.Query("limit"), defaultLimit), ParseInt(c.Query("offset"), 0)
}
