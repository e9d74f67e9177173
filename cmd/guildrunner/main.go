package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/sio60/guildrunner/cfg"
	"github.com/sio60/guildrunner/internal/auth"
	"github.com/sio60/guildrunner/internal/rate"
	"github.com/sio60/guildrunner/pkg/cache"
	"github.com/sio60/guildrunner/pkg/idgen"
	"github.com/sio60/guildrunner/pkg/identitystore"
	"github.com/sio60/guildrunner/pkg/kakao"
	"github.com/sio60/guildrunner/pkg/logger"
	"github.com/sio60/guildrunner/pkg/observability"

	_ "github.com/sio60/guildrunner/cmd/guildrunner/docs" // swagger docs
)

// @title           Guildrunner Auth API
// @version         1.0
// @description     Kakao OAuth to first-party session bridge.
// @BasePath        /
// @schemes         http
func main() {
	// ============
	// config
	// ============
	config, errCfg := cfg.Load()
	if errCfg != nil {
		log.Fatal(errCfg)
	}

	// ============
	// logger
	// ============
	zlogger := logger.NewZeroLog(config.AppEnv)

	// ============
	// Otel
	// ============
	shutdownOtel, err := observability.Init(context.Background(), &config.Observability)
	if err != nil {
		log.Printf("WARNING: failed to initialize OpenTelemetry: %v", err)
		log.Printf("Continuing without tracing/metrics...")
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownOtel(ctx); err != nil {
				log.Printf("failed to shutdown OpenTelemetry: %v", err)
			}
		}()
	}

	// ============
	// Cache
	// ============
	redisAddr := config.RedisConfig.Host + ":" + config.RedisConfig.Port
	redis := cache.NewRedisCache(redisAddr, config.RedisConfig.Password)
	loginLimiter := rate.NewLimiter(redis, "rl:login:", config.LoginRatePerMinute, time.Minute)

	// ============
	// External Service
	// ============
	httpClient := &http.Client{
		Timeout: 10 * time.Second,
	}
	kakaoClient := kakao.NewClient(httpClient, config.KakaoConfig.RestAPIKey, config.KakaoConfig.ClientSecret, zlogger)
	storeClient := identitystore.NewClient(httpClient, config.IdentityStore.BaseURL, config.IdentityStore.ServiceKey, zlogger)

	// ============
	// Internal Service
	// ============
	authSvc := auth.NewService(kakaoClient, storeClient, config.JWTSecret, zlogger)
	authHandler := auth.NewHandler(authSvc, config.JWTSecret, zlogger)

	idGenerator, err := idgen.NewSnowflakeGenerator(1)
	if err != nil {
		log.Fatal(err)
	}

	// ============
	// HTTP
	// ============
	r := gin.Default()
	r.Use(otelgin.Middleware(config.Observability.ServiceName))
	r.Use(auth.CORSMiddleware())
	r.Use(auth.RequestIDMiddleware(idGenerator))
	r.Use(auth.TraceLoggerMiddleware(zlogger))

	authHandler.RegisterRoutes(r, auth.RateLimitMiddleware(loginLimiter, zlogger))
	initSwagger(r)

	addr := fmt.Sprintf(":%s", config.AppPort)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func initSwagger(r *gin.Engine) {
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		html := `<!DOCTYPE html>
<html>
<head>
    <title>API Documentation</title>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
    <script id="api-reference" data-url="/swagger/doc.json"></script>
    <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body>
</html>`
		c.String(200, html)
	})
}
