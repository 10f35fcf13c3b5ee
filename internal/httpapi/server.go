// Package httpapi exposes the restaurant service as a JSON API over gin.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/canteen/pkg/restaurant"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Run serves the API until ctx is cancelled.
func Run(ctx context.Context, cfg Config, service *restaurant.Service, logger *zap.Logger, gatherer prometheus.Gatherer) error {
	router, err := NewRouter(cfg, service, logger, gatherer)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// NewRouter builds the gin engine. cfg is validated first.
func NewRouter(cfg Config, service *restaurant.Service, logger *zap.Logger, gatherer prometheus.Gatherer) (*gin.Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if service == nil {
		return nil, fmt.Errorf("restaurant service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	validator, err := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: []byte(cfg.SessionSigningKey),
		Issuer:     cfg.SessionIssuer,
		CookieName: cfg.SessionCookieName,
	})
	if err != nil {
		return nil, fmt.Errorf("session validator: %w", err)
	}
	handler := &httpHandler{
		service: service,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
		revoked: newRevocationList(),
	}
	return setupRouter(cfg, handler, validator, gatherer), nil
}

func setupRouter(cfg Config, handler *httpHandler, validator *sessionvalidator.Validator, gatherer prometheus.Gatherer) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	api.Use(requestTimeout(cfg.RequestTimeout))

	api.POST("/student/register", handler.handleRegister)
	api.POST("/student/login", handler.handleStudentLogin)
	api.POST("/admin/login", handler.handleAdminLogin)

	student := api.Group("")
	student.Use(validator.GinMiddleware(claimsContextKey), handler.requireSession(restaurant.SessionScopeStudent))
	student.POST("/student/logout", handler.handleLogout)
	student.GET("/menu/week", handler.handleWeeklyMenu)
	student.GET("/menu/:id", handler.handleMenuOffering)
	student.GET("/reservations", handler.handleListReservations)
	student.POST("/reservations", handler.handleCreateReservation)
	student.GET("/reservations/:id", handler.handleGetReservation)
	student.POST("/reservations/:id/cancel", handler.handleCancelReservation)
	student.GET("/wallet", handler.handleWallet)
	student.POST("/wallet/recharge", handler.handleRecharge)
	student.GET("/points", handler.handlePoints)
	student.GET("/feedback", handler.handleListFeedback)
	student.POST("/feedback", handler.handleSubmitFeedback)
	student.GET("/feedback/:id", handler.handleGetFeedback)
	student.GET("/profile", handler.handleProfile)
	student.PUT("/profile", handler.handleUpdateProfile)
	student.GET("/profile/history", handler.handleListReservations)

	admin := api.Group("/admin")
	admin.Use(validator.GinMiddleware(claimsContextKey), handler.requireSession(restaurant.SessionScopeAdmin))
	admin.POST("/logout", handler.handleLogout)
	admin.GET("/session", handler.handleAdminSession)

	admin.GET("/menus", handler.handleAdminListMenus)
	admin.POST("/menus", handler.handleAdminCreateMenu)
	admin.GET("/menus/:id", handler.handleAdminGetMenu)
	admin.PUT("/menus/:id", handler.handleAdminUpdateMenu)
	admin.DELETE("/menus/:id", handler.handleAdminDeleteMenu)

	admin.GET("/students", handler.handleAdminListStudents)
	admin.POST("/students", handler.handleAdminCreateStudent)
	admin.GET("/students/:id", handler.handleAdminGetStudent)
	admin.PUT("/students/:id", handler.handleAdminUpdateStudent)
	admin.DELETE("/students/:id", handler.handleAdminDeleteStudent)
	admin.POST("/students/:id/restore", handler.handleAdminRestoreStudent)

	admin.GET("/reservations", handler.handleAdminListReservations)
	admin.GET("/reservations/statistics", handler.handleAdminReservationStatistics)
	admin.GET("/reservations/:id", handler.handleAdminGetReservation)
	admin.PUT("/reservations/:id/status", handler.handleAdminUpdateReservationStatus)

	admin.GET("/feedback", handler.handleAdminListFeedback)
	admin.GET("/feedback/statistics", handler.handleAdminFeedbackStatistics)
	admin.GET("/feedback/:id", handler.handleAdminGetFeedback)
	admin.DELETE("/feedback/:id", handler.handleAdminDeleteFeedback)

	return router
}

func requestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), timeout)
		defer cancel()
		ctx.Request = ctx.Request.WithContext(requestCtx)
		ctx.Next()
	}
}

type httpHandler struct {
	service *restaurant.Service
	logger  *zap.Logger
	cfg     Config
	now     func() time.Time
	revoked *revocationList
}
