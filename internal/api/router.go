package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/attend/internal/api/handlers"
	"github.com/your-org/attend/internal/api/ws"
	"github.com/your-org/attend/internal/auth"
	"github.com/your-org/attend/internal/queue"
	"github.com/your-org/attend/internal/service"
	"github.com/your-org/attend/internal/store"
)

type RouterConfig struct {
	AdminKey  string
	Service   *service.Service
	Hub       *ws.Hub
	Snapshots *store.SnapshotStore // optional
	Publisher *queue.Publisher     // optional
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Snapshots, cfg.Publisher)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (behind the admin key)
	v1 := r.Group("/v1")
	v1.Use(auth.AdminKeyMiddleware(cfg.AdminKey))

	// WebSocket feed
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Mode control
	attendH := handlers.NewAttendanceHandler(cfg.Service)
	v1.GET("/status", attendH.Status)
	v1.POST("/attendance/start", attendH.Start)
	v1.POST("/attendance/stop", attendH.Stop)

	// Enrollment
	enrollH := handlers.NewEnrollmentHandler(cfg.Service)
	v1.POST("/enrollment/start", enrollH.Start)
	v1.POST("/enrollment/stop", enrollH.Stop)
	v1.POST("/enrollment/cancel", enrollH.Cancel)
	v1.GET("/enrollment", enrollH.Status)

	// Identities
	identityH := handlers.NewIdentityHandler(cfg.Service)
	v1.GET("/identities", identityH.List)
	v1.DELETE("/identities/:id", identityH.Delete)

	// Groups
	groupH := handlers.NewGroupHandler(cfg.Service)
	v1.GET("/groups", groupH.List)
	v1.POST("/groups", groupH.Create)
	v1.DELETE("/groups/:name", groupH.Delete)

	// Attendance records
	eventH := handlers.NewEventHandler(cfg.Service, cfg.Snapshots)
	v1.GET("/events", eventH.List)
	v1.GET("/events/partitions", eventH.Partitions)
	v1.GET("/events/snapshot", eventH.Snapshot)

	// Settings
	settingsH := handlers.NewSettingsHandler(cfg.Service)
	v1.GET("/settings", settingsH.Get)
	v1.PUT("/settings", settingsH.Update)

	return r
}
