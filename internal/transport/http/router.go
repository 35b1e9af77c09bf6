package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	AllowedOrigins []string
}

// NewRouter builds the gin engine with CORS and all appointment routes.
func NewRouter(handler *AppointmentsHandler, cfg RouterConfig, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	corsCfg := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsCfg))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/appointments")
	{
		api.POST("/patientAppointments", handler.CreateByPatient)
		api.POST("/doctorAppointments", handler.CreateByStaff)
		api.GET("/doctorAppointments", handler.ListAll)
		api.GET("/patient/:patientId", handler.ListByPatient)
		api.GET("/date/:date", handler.ListByDate)
		api.DELETE("/date/:date", handler.DeleteAllByDate)
		api.GET("/refNo/:refNo", handler.FindByReference)
		api.DELETE("/refNo/:refNo", handler.DeleteByReference)
		api.PUT("/refNo/:refNo", handler.RescheduleByReference)
		api.GET("/patientIdByRefNo/:refNo", handler.PatientIDByReference)
		api.POST("/reschedule/:id", handler.RescheduleByID)
	}

	return router
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	logger = logger.With(slog.String("component", "http"))
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
