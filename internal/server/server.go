package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Manumac86/collybrix-admin-sub001/internal/identity"
	"github.com/Manumac86/collybrix-admin-sub001/internal/repository"
)

// TokenVerifier checks identity-provider session tokens.
type TokenVerifier interface {
	Verify(token string) (identity.Principal, error)
}

// Directory lists the identity provider's users.
type Directory interface {
	Users(ctx context.Context) ([]identity.DirectoryUser, error)
}

// Server provides the HTTP API and serves the admin UI.
type Server struct {
	engine    *gin.Engine
	repo      *repository.Repository
	logger    *slog.Logger
	staticDir string
	verifier  TokenVerifier
	directory Directory
	now       func() time.Time
}

// Option configures optional collaborators of the server.
type Option func(*Server)

// WithVerifier turns on session-token checks for every API route except
// the health check. Without it requests run as a local development user.
func WithVerifier(v TokenVerifier) Option {
	return func(s *Server) { s.verifier = v }
}

// WithDirectory enables merging the identity provider's users into listings.
func WithDirectory(d Directory) Option {
	return func(s *Server) { s.directory = d }
}

// WithClock overrides the time source used for seeding.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New constructs the HTTP server with routes and middleware configured.
func New(repo *repository.Repository, logger *slog.Logger, staticDir string, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	// Tests select test mode before building a server.
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	srv := &Server{
		engine:    router,
		repo:      repo,
		logger:    logger,
		staticDir: staticDir,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(srv)
	}

	router.Use(requestID(), srv.requestLogger(), srv.recovery())
	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	s.engine.GET("/api/healthz", s.handleHealth)

	api := s.engine.Group("/api", s.authenticate())
	{
		api.POST("/seed", s.handleSeed)

		projects := api.Group("/projects")
		{
			projects.GET("", s.handleListProjects)
			projects.POST("", s.handleCreateProject)
			projects.GET("/pipeline", s.handlePipeline)
			projects.GET("/revenue", s.handleRevenue)
			projects.GET("/:id", s.handleGetProject)
			projects.PUT("/:id", s.handleReplaceProject)
			projects.DELETE("/:id", s.handleDeleteProject)
		}

		estimations := api.Group("/estimations")
		{
			estimations.GET("", s.handleListEstimations)
			estimations.POST("", s.handleCreateEstimation)
			estimations.GET("/:id", s.handleGetEstimation)
			estimations.PUT("/:id", s.handleReplaceEstimation)
			estimations.DELETE("/:id", s.handleDeleteEstimation)
		}

		pm := api.Group("/pm")
		{
			tasks := pm.Group("/tasks")
			tasks.GET("", s.handleListTasks)
			tasks.POST("", s.handleCreateTask)
			tasks.GET("/:id", s.handleGetTask)
			tasks.PUT("/:id", s.handleReplaceTask)
			tasks.PATCH("/:id", s.handlePatchTask)
			tasks.DELETE("/:id", s.handleDeleteTask)

			sprints := pm.Group("/sprints")
			sprints.GET("", s.handleListSprints)
			sprints.POST("", s.handleCreateSprint)
			sprints.GET("/:id", s.handleGetSprint)
			sprints.PUT("/:id", s.handleReplaceSprint)
			sprints.PATCH("/:id", s.handlePatchSprint)
			sprints.DELETE("/:id", s.handleDeleteSprint)
			sprints.GET("/:id/tasks", s.handleSprintTasks)
			sprints.POST("/:id/start", s.handleStartSprint)
			sprints.POST("/:id/complete", s.handleCompleteSprint)

			retro := sprints.Group("/:id/retrospective")
			retro.GET("", s.handleRetroBoard)
			retro.PATCH("", s.handleRetroStatus)
			retro.POST("/cards", s.handleAddCard)
			retro.PATCH("/cards/:cardId", s.handleUpdateCard)
			retro.DELETE("/cards/:cardId", s.handleDeleteCard)
			retro.POST("/cards/:cardId/vote", s.handleVote)
			retro.DELETE("/cards/:cardId/vote", s.handleUnvote)
			retro.POST("/actions", s.handleAddAction)
			retro.PATCH("/actions/:actionId", s.handleUpdateAction)
			retro.DELETE("/actions/:actionId", s.handleDeleteAction)

			metrics := pm.Group("/metrics")
			metrics.GET("/summary", s.handleSummary)
			metrics.GET("/burndown", s.handleBurndown)
			metrics.GET("/velocity", s.handleVelocity)

			tags := pm.Group("/tags")
			tags.GET("", s.handleListTags)
			tags.POST("", s.handleCreateTag)
			tags.GET("/:id", s.handleGetTag)
			tags.PUT("/:id", s.handleUpdateTag)
			tags.DELETE("/:id", s.handleDeleteTag)

			users := pm.Group("/users")
			users.GET("", s.handleListUsers)
			users.POST("", s.handleCreateUser)
			users.GET("/:id", s.handleGetUser)
			users.PUT("/:id", s.handleReplaceUser)
			users.PATCH("/:id", s.handlePatchUser)
			users.DELETE("/:id", s.handleDeleteUser)
		}
	}

	s.mountStatic()
}

// handleHealth reports whether the document store answers.
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.repo.Ping(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "ok"})
}
