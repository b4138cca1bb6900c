package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jobscout/internal/config"
	"jobscout/internal/repository"
)

// StatusProvider reports the current batch state for the /status endpoint
type StatusProvider interface {
	IsRunning() bool
	GetNextRun() time.Time
}

// New builds the optional status HTTP server. It serves liveness,
// Prometheus metrics, scheduler status and (when a database is
// configured) the recent extraction audit trail.
func New(cfg *config.ServerConfig, status StatusProvider, repo *repository.Repository) *http.Server {
	router := SetupRouter(status, repo)
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// SetupRouter configures routes and middleware
func SetupRouter(status StatusProvider, repo *repository.Repository) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now(),
		})
	})

	router.GET("/status", func(c *gin.Context) {
		resp := gin.H{"running": false}
		if status != nil {
			resp["running"] = status.IsRunning()
			if next := status.GetNextRun(); !next.IsZero() {
				resp["next_run"] = next
			}
		}
		c.JSON(http.StatusOK, resp)
	})

	router.GET("/logs", func(c *gin.Context) {
		if repo == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit database not configured"})
			return
		}
		logs, err := repo.RecentLogs(100)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, logs)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

func loggerMiddleware() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	})
}
