package httputil

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

// MaxPageLimit caps the number of audit entries returned per page.
const MaxPageLimit = 1000

// ParsePagination parses the "from" sequence cursor and "limit" query parameters.
// from defaults to 1 and limit to 100, with limit capped at MaxPageLimit.
func ParsePagination(c *gin.Context) (from uint64, limit int, err error) {
	from, err = strconv.ParseUint(c.DefaultQuery("from", "1"), 10, 64)
	if err != nil || from == 0 {
		return 0, 0, fmt.Errorf("invalid from parameter: must be a positive integer")
	}

	limit, err = strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 || limit > MaxPageLimit {
		return 0, 0, fmt.Errorf("invalid limit parameter: must be between 1 and %d", MaxPageLimit)
	}

	return from, limit, nil
}

// ParseSequenceRange parses the optional "from" and "to" sequence bounds.
// Missing bounds are returned as 0.
func ParseSequenceRange(c *gin.Context) (from, to uint64, err error) {
	if raw := c.Query("from"); raw != "" {
		from, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid from parameter: must be a non-negative integer")
		}
	}
	if raw := c.Query("to"); raw != "" {
		to, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid to parameter: must be a non-negative integer")
		}
	}
	return from, to, nil
}
