package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"decentra/internal/middleware"
	"decentra/internal/models"
	"decentra/internal/obs"
	"decentra/internal/security"
	"decentra/internal/service"
)

type AuthAPI interface {
	Register(ctx context.Context, input service.RegisterInput) (service.AuthResult, error)
	Login(ctx context.Context, input service.LoginInput) (service.AuthResult, error)
	Logout(ctx context.Context, claims security.ClaimSet) error
	Introspect(ctx context.Context, claims security.ClaimSet) (service.SessionInfo, error)
	CheckActive(ctx context.Context, userID int64) (bool, error)
	Profile(ctx context.Context, userID int64) (service.Profile, error)
}

type PhotoAPI interface {
	Upload(ctx context.Context, userID int64, files []service.UploadFile) (service.UploadResult, error)
	ListForUser(ctx context.Context, userID int64) ([]service.PhotoView, error)
}

type AppealAPI interface {
	Create(ctx context.Context, userID int64, input service.CreateAppealInput) (models.Appeal, error)
	List(ctx context.Context, limit, offset int) ([]models.Appeal, error)
	Get(ctx context.Context, id int64) (service.AppealDetail, error)
	SetStatus(ctx context.Context, id int64, appealed bool) (models.Appeal, error)
}

// Pinger is a dependency reported by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CookiePolicy describes the auth cookie written on register and login.
type CookiePolicy struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

type Deps struct {
	Log         zerolog.Logger
	Environment string
	Auth        AuthAPI
	Photos      PhotoAPI
	Appeals     AppealAPI
	Tokens      middleware.TokenValidator
	Revocations middleware.RevocationChecker
	Metrics     *obs.Metrics
	Cookie      CookiePolicy
	LoginRate   float64
	LoginBurst  int
	Checks      map[string]Pinger
}

type HandlerSet struct {
	log         zerolog.Logger
	environment string
	auth        AuthAPI
	photos      PhotoAPI
	appeals     AppealAPI
	tokens      middleware.TokenValidator
	revocations middleware.RevocationChecker
	metrics     *obs.Metrics
	cookie      CookiePolicy
	loginRate   float64
	loginBurst  int
	checks      map[string]Pinger
}

func NewHandlerSet(deps Deps) HandlerSet {
	if deps.Cookie.Name == "" {
		deps.Cookie.Name = "jwt-token"
	}
	return HandlerSet{
		log:         deps.Log,
		environment: deps.Environment,
		auth:        deps.Auth,
		photos:      deps.Photos,
		appeals:     deps.Appeals,
		tokens:      deps.Tokens,
		revocations: deps.Revocations,
		metrics:     deps.Metrics,
		cookie:      deps.Cookie,
		loginRate:   deps.LoginRate,
		loginBurst:  deps.LoginBurst,
		checks:      deps.Checks,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	router.Use(middleware.Authenticate(h.tokens, h.revocations, h.cookie.Name, h.log))

	auth := router.Group("/auth")
	{
		credentials := auth.Group("")
		if h.loginRate > 0 {
			credentials.Use(middleware.RateLimit(h.loginRate, h.loginBurst))
		}
		credentials.POST("/register", h.RegisterUser)
		credentials.POST("/login", h.Login)

		protected := auth.Group("", middleware.RequireAuth())
		protected.POST("/logout", h.Logout)
		protected.GET("/me", h.Me)
		protected.GET("/active/:id", h.CheckActive)
		protected.GET("/profile", h.Profile)
	}

	photos := router.Group("/photos", middleware.RequireAuth())
	photos.POST("/upload", h.UploadPhotos)
	photos.GET("", h.ListPhotos)

	appeals := router.Group("/appeals")
	appeals.POST("", middleware.RequireAuth(), h.CreateAppeal)

	admin := appeals.Group("", middleware.RequireRoles(models.UserRoleAdmin))
	admin.GET("", h.ListAppeals)
	admin.GET("/:id", h.GetAppeal)
	admin.PATCH("/:id/status", h.SetAppealStatus)
}

func (h HandlerSet) authEvent(operation, outcome string) {
	if h.metrics != nil {
		h.metrics.AuthEvent(operation, outcome)
	}
}
