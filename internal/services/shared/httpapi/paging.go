package httpapi

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/louisbranch/gathering.space/internal/platform/pagination"
)

// PageQuery reads ?page= and ?page_size= and applies the shared page policy.
func PageQuery(c *gin.Context) (pagination.Request, error) {
	page, err := intQuery(c, "page")
	if err != nil {
		return pagination.Request{}, err
	}
	size, err := intQuery(c, "page_size")
	if err != nil {
		return pagination.Request{}, err
	}
	return pagination.Normalize(page, size, pagination.DefaultConfig)
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
