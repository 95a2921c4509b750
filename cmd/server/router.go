package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/livepoll/backend/internal/auth"
	"github.com/livepoll/backend/internal/export"
	"github.com/livepoll/backend/internal/feed"
	"github.com/livepoll/backend/internal/middleware"
	"github.com/livepoll/backend/internal/realtime"
	"github.com/livepoll/backend/internal/results"
	"github.com/livepoll/backend/internal/sessions"
	"github.com/livepoll/backend/internal/votes"
	"github.com/livepoll/backend/pkg/response"
)

// voteRepository is both sides of vote persistence. *votes.Repository implements it.
type voteRepository interface {
	votes.Store
	results.VoteReader
}

// app is the wired service graph behind the HTTP router.
type app struct {
	manager *sessions.Manager
	results *results.Service
	hub     *realtime.Hub
	jwt     *auth.JWTService
	logger  *zap.Logger

	sessionsHandler *sessions.Handler
	votesHandler    *votes.Handler
	resultsHandler  *results.Handler
	authHandler     *auth.Handler
	exportHandler   *export.Handler
}

type appConfig struct {
	PublicBaseURL   string
	LayoutCacheSize int
	AdminPassword   string
	JWTSecret       string
	TokenHours      int
}

// exportDeps are optional; any nil field disables background exports.
type exportDeps struct {
	store    export.Store
	enqueuer export.Enqueuer
	signer   export.Signer
}

func newApp(cfg appConfig, sessionStore sessions.Store, voteRepo voteRepository, changes feed.Feed, exp exportDeps, logger *zap.Logger) (*app, error) {
	manager, err := sessions.NewManager(sessionStore, cfg.LayoutCacheSize, logger)
	if err != nil {
		return nil, err
	}
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.TokenHours)
	resultsService := results.NewService(manager, voteRepo)
	validator := votes.NewValidator(manager, voteRepo, jwtService, changes, logger)

	return &app{
		manager:         manager,
		results:         resultsService,
		hub:             realtime.NewHub(changes, resultsService, logger),
		jwt:             jwtService,
		logger:          logger,
		sessionsHandler: sessions.NewHandler(manager, cfg.PublicBaseURL, logger),
		votesHandler:    votes.NewHandler(validator),
		resultsHandler:  results.NewHandler(resultsService),
		authHandler:     auth.NewHandler(jwtService, manager, cfg.AdminPassword, logger),
		exportHandler:   export.NewHandler(resultsService, exp.store, exp.enqueuer, exp.signer, logger),
	}, nil
}

func (a *app) router(corsOrigins string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.CORS(corsOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "route not found")
	})

	router.GET("/sessions", a.sessionsHandler.ListActive)
	router.POST("/sessions", a.sessionsHandler.Create)
	router.GET("/sessions/:id", a.sessionsHandler.Get)
	router.GET("/sessions/:id/qr.png", a.sessionsHandler.QRCode)
	router.POST("/sessions/:id/unlock", a.authHandler.Unlock)
	router.POST("/sessions/:id/votes", a.votesHandler.Submit)
	router.GET("/sessions/:id/results", a.resultsHandler.Get)
	router.GET("/sessions/:id/voters", a.resultsHandler.Voters)
	router.GET("/ws", realtime.ServeWs(a.hub, a.manager, a.logger))

	router.POST("/admin/login", a.authHandler.Login)
	admin := router.Group("/admin")
	admin.Use(middleware.JWT(a.jwt), middleware.RequireRole(auth.RoleAdmin))
	{
		admin.GET("/sessions", a.sessionsHandler.List)
		admin.PATCH("/sessions/:id/active", a.sessionsHandler.SetActive)
		admin.GET("/sessions/:id/export", a.exportHandler.Download)
		admin.POST("/sessions/:id/exports", a.exportHandler.Enqueue)
		admin.GET("/exports/:id", a.exportHandler.Status)
	}
	return router
}
