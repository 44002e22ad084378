package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"defectmaster-backend/internal/analyses"
	"defectmaster-backend/internal/ledger"
	"defectmaster-backend/internal/shared/config"
	"defectmaster-backend/internal/shared/metrics"
	"defectmaster-backend/internal/shared/server/middleware"
	"defectmaster-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers the router mounts. Dependency construction
// lives in bootstrap; the router only wires middleware and routes.
type RouterDeps struct {
	Config          config.Config
	LedgerHandler   *ledger.Handler
	AnalysesHandler *analyses.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.Identity(),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: "DEFAULT",
			GroupFor:     rateLimitGroup,
			Rules: map[string]middleware.RateLimitRule{
				// Submissions are throttled hard; the AI queue behind them
				// only admits one provider call per interval anyway.
				"SUBMIT":  {Rate: 0.2, Burst: 3},
				"DEFAULT": {Rate: 10, Burst: 20},
			},
		}),
	)

	r.GET("/metrics", metrics.Handler())
	if cfg.PhotoStoreType == "local" {
		r.Static("/photos", cfg.LocalStoreDir)
	}

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})

	deps.LedgerHandler.RegisterRoutes(api.Group("/users"))
	deps.AnalysesHandler.RegisterRoutes(api.Group("/analyses"))
	deps.AnalysesHandler.RegisterDefectRoutes(api.Group("/defects"))

	admin := api.Group("/admin", middleware.AdminGuard(cfg.AdminToken))
	adminUsers := admin.Group("/users")
	deps.LedgerHandler.RegisterAdminRoutes(adminUsers)
	deps.AnalysesHandler.RegisterAdminRoutes(adminUsers)

	return r
}

func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/analyses" {
		return "SUBMIT"
	}
	return "DEFAULT"
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
