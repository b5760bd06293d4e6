package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"grimoire-api/internal/core/auth"
	"grimoire-api/internal/core/config"
	"grimoire-api/internal/transport/http/handler"
	mdw "grimoire-api/internal/transport/http/middleware"
)

type Deps struct {
	Log     *zap.Logger
	Cfg     *config.Config
	JWTer   *auth.JWTer
	Auth    *handler.AuthHandler
	Books   *handler.BookHandler
	MediaFS string // directory served under the image URL prefix
}

func NewAPIEngine(d Deps) *gin.Engine {
	r := gin.New()

	r.Use(
		ginzap.RecoveryWithZap(d.Log, true),
		mdw.RequestID(),
		mdw.RateLimit(rate.Limit(d.Cfg.RateLimit.GlobalRPS), d.Cfg.RateLimit.GlobalBurst),
		mdw.ConcurrencyLimit(d.Cfg.RateLimit.MaxInflight),
		// uploads cap at media.max_upload_mb; leave headroom for the
		// rest of the multipart body
		mdw.MaxBodyBytes(int64(d.Cfg.Media.MaxUploadMB+2)<<20),
		mdw.Timeout(10*time.Second),
		mdw.Metrics(),
		ginzap.Ginzap(d.Log, time.RFC3339, true),
	)

	corsCfg := cors.DefaultConfig()
	if len(d.Cfg.App.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = d.Cfg.App.CORSOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// stored covers are public static files
	r.Static(d.Cfg.Media.URLPrefix, d.MediaFS)

	api := r.Group("/api")

	authG := api.Group("/auth")
	authG.POST("/signup", d.Auth.Signup)
	authG.POST("/login",
		mdw.RateLimitPerIP(rate.Limit(d.Cfg.RateLimit.LoginRPS), d.Cfg.RateLimit.LoginBurst),
		d.Auth.Login,
	)

	reads := api.Group("/books")
	if d.Cfg.App.RequireAuthForReads {
		reads.Use(mdw.AuthJWT(d.JWTer))
	}
	reads.GET("", d.Books.List)
	reads.GET("/bestratings", d.Books.BestRatings)
	reads.GET("/:id", d.Books.Get)

	writes := api.Group("/books", mdw.AuthJWT(d.JWTer))
	writes.POST("", d.Books.Create)
	writes.PUT("/:id", d.Books.Update)
	writes.DELETE("/:id", d.Books.Delete)
	writes.POST("/:id/rating", d.Books.Rate)

	return r
}
