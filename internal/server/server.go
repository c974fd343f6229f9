package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/azaliaz/bookly/review-service/internal/config"
	"github.com/azaliaz/bookly/review-service/internal/domain/models"
	"github.com/azaliaz/bookly/review-service/internal/logger"
	"github.com/azaliaz/bookly/review-service/internal/metrics"
)

//go:generate mockgen -source=server.go -destination=./mocks/service_mock.go -package=mocks

type Service interface {
	Register(ctx context.Context, req models.RegisterRequest) (models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (models.AuthResponse, error)
	CurrentUser(ctx context.Context, uid string) (models.User, error)
	CreateBook(ctx context.Context, req models.BookRequest) (models.Book, error)
	ListBooks(ctx context.Context) ([]models.Book, error)
	BookDetails(ctx context.Context, bid string, page, limit int) (models.BookDetails, error)
	CreateReview(ctx context.Context, bid, uid string, req models.ReviewRequest) (models.Review, error)
	UpdateReview(ctx context.Context, rid, uid string, req models.ReviewUpdateRequest) (models.Review, error)
	DeleteReview(ctx context.Context, rid, uid string) error
}

type TokenVerifier interface {
	Verify(token string) (string, error)
}

type Server struct {
	serv    *http.Server
	valid   *validator.Validate
	Service Service
	tokens  TokenVerifier
	ErrChan chan error
}

func New(cfg config.Config, svc Service, tokens TokenVerifier) *Server {
	server := http.Server{
		Addr:              cfg.Addr,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{
		serv:    &server,
		valid:   validator.New(),
		Service: svc,
		tokens:  tokens,
		ErrChan: make(chan error),
	}
}

func (s *Server) ShutdownServer() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.serv.Shutdown(ctx)
}

// Router wires every route. Protected routes go through JWTAuthMiddleware.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), metrics.Middleware())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:   []string{"Content-Length", "Authorization"},
		MaxAge:          12 * time.Hour,
	}))
	router.GET("/", func(ctx *gin.Context) { ctx.String(http.StatusOK, "Hello") })
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	auth := api.Group("/auth")
	{
		auth.POST("/register", s.Register)
		auth.POST("/login", s.Login)
		auth.GET("/me", s.JWTAuthMiddleware(), s.UserInfo)
	}
	books := api.Group("/books")
	{
		books.GET("", s.AllBooks)
		books.POST("", s.JWTAuthMiddleware(), s.AddBook)
		books.GET("/:id", s.BookInfo)
		books.POST("/:id/reviews", s.JWTAuthMiddleware(), s.AddReview)
	}
	reviews := api.Group("/reviews", s.JWTAuthMiddleware())
	{
		reviews.PUT("/:id", s.UpdateReview)
		reviews.DELETE("/:id", s.RemoveReview)
	}
	return router
}

func (s *Server) Run(_ context.Context) error {
	log := logger.Get()
	s.serv.Handler = s.Router()
	log.Info().Str("host", s.serv.Addr).Msg("server started")
	if err := s.serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// JWTAuthMiddleware resolves the bearer token to a user id stored under "uid".
// Every failure gets the same 401 response and stops the chain.
func (s *Server) JWTAuthMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		log := logger.Get()

		scheme, tokenStr, ok := strings.Cut(ctx.GetHeader("Authorization"), " ")
		if !ok || scheme != "Bearer" || tokenStr == "" {
			log.Debug().Msg("missing or malformed authorization header")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		uid, err := s.tokens.Verify(tokenStr)
		if err != nil {
			log.Debug().Err(err).Msg("validate jwt failed")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx.Set("uid", uid)
		ctx.Next()
	}
}
