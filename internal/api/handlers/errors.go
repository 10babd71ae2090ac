package handlers

import (
	"errors"
	"net/http"

	"github.com/andresuchdata/warenbestand/internal/cache"
	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// statusFor maps structural and input errors to 400 and everything else to 500
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrMissingColumn),
		errors.Is(err, domain.ErrEmptyTable),
		errors.Is(err, domain.ErrUnsupportedFormat),
		errors.Is(err, domain.ErrInvalidMode),
		errors.Is(err, domain.ErrInvalidLedgerRecord):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, cache.ErrLockBusy):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, status int, message string, err error) {
	body := gin.H{"error": message}
	if err != nil {
		body["details"] = err.Error()
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(message)
	}
	c.AbortWithStatusJSON(status, body)
}
