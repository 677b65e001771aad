package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sessionwave/orchestrator/internal/store"
)

// respondError mirrors the teacher's pkg/api/errors.go: a single place
// translating store.ErrNotFound into 404 and everything else into 500,
// so callers never leak raw SQL errors to a client (spec §7: "user-visible
// failure... never a 5xx from /ingest/session" — this helper is what keeps
// every OTHER handler's failure path equally uniform).
func respondError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
