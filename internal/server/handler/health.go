package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lifei6671/userauth/internal/database"
)

// ReadinessChecker reports the database readiness gate.
type ReadinessChecker interface {
	State() database.State
	Err() error
}

// Health reports that the process is alive.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready answers 200 once the database is ready and 503 otherwise.
func Ready(db ReadinessChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := db.State()
		if state == database.StateReady {
			c.JSON(http.StatusOK, gin.H{"status": "ready", "database": state.String()})
			return
		}

		body := gin.H{"status": "not_ready", "database": state.String()}
		if err := db.Err(); err != nil {
			body["error"] = err.Error()
		}
		c.JSON(http.StatusServiceUnavailable, body)
	}
}
