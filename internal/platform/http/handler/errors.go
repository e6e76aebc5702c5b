package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockwatcher/internal/platform/store"
)

// StatusFor はストアのエラー種別をHTTPステータスに対応付けます。
func StatusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrStateConflict):
		return http.StatusConflict
	case errors.Is(err, store.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, store.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// AbortWithError はエラーをJSONで返して以降のハンドラーを中断します。
func AbortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(StatusFor(err), gin.H{"error": err.Error()})
}
