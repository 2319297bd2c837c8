package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"avenir-sync/internal/telemetry"
)

type debugAuditRequest struct {
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// RegisterDebugRoutes wires dev-only endpoints for exercising the audit
// trail without going through a business flow.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.POST("/debug/audit", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}

		req := debugAuditRequest{Severity: "INFO", Detail: "audit test"}
		_ = c.ShouldBindJSON(&req)

		emitter.Emit(c.Request.Context(), req.Severity, req.Detail, requestIDFromContext(c), auditUserID(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok", "severity": req.Severity})
	})
}
