package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	gatekeeper "go.pilab.hu/gatekeeper"
	echoapi "go.pilab.hu/gatekeeper/api/echo"
	"go.pilab.hu/gatekeeper/cache"
	redisstore "go.pilab.hu/gatekeeper/cache/redis"
	"go.pilab.hu/gatekeeper/config"
	"go.pilab.hu/gatekeeper/internal/crypto"
	"go.pilab.hu/gatekeeper/log"
	"go.pilab.hu/gatekeeper/mongodb"
	"go.pilab.hu/gatekeeper/recaptcha"
	"go.pilab.hu/gatekeeper/tracing"
)

var (
	appLogger      log.Logger
	tracerProvider *sdktrace.TracerProvider
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	appLogger = log.NewZerologAdapter(logLevel, cfg.LogPretty)

	ctx := context.Background()
	appLogger.Info(ctx, "Starting gatekeeper server", map[string]interface{}{
		"http_port":     cfg.HTTPPort,
		"mongo_db_name": cfg.MongoDBName,
		"log_level":     cfg.LogLevel,
	})

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize TracerProvider", err)
	}
	tracerProvider = tp

	if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
		appLogger.Fatal(ctx, "Failed to initialize MongoDB connection", err)
	}
	db := mongodb.GetDB()

	clientRepo := mongodb.NewClientRepository(db)
	accountRepo := mongodb.NewAccountRepository(db)
	tokenRepo := mongodb.NewTokenRepository(db)

	codec, err := buildCodec(cfg)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize token codec", err)
	}

	var store cache.TokenStore
	cacheTTL := time.Duration(cfg.CacheDefaultMin) * time.Minute
	if cfg.RedisAddr != "" {
		store = redisstore.NewTokenStore(
			goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr}),
			"gatekeeper", cacheTTL,
		)
	} else {
		store = cache.NewMemoryTokenStore(cacheTTL)
	}

	issuer := gatekeeper.NewTokenIssuer(
		clientRepo,
		tokenRepo,
		codec,
		[]gatekeeper.Granter{
			gatekeeper.NewClientCredentialsGranter(tokenRepo),
			gatekeeper.NewPasswordGranter(accountRepo, tokenRepo),
			gatekeeper.NewRefreshTokenGranter(accountRepo, tokenRepo, codec),
		},
		gatekeeper.WithTokenStore(store),
		gatekeeper.WithRecaptchaVerifier(recaptcha.NewVerifier()),
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	echoapi.NewTokenAPI(issuer).RegisterRoutes(e)

	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(ctx, "HTTP server failed", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info(ctx, "Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown failed", err)
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "TracerProvider shutdown failed", err)
	}
	mongodb.CloseMongoDB(shutdownCtx)
}

func buildCodec(cfg *config.ServerConfig) (*gatekeeper.TokenCodec, error) {
	codecCfg := gatekeeper.CodecConfig{
		Issuer:     cfg.TokenIssuer,
		Expiration: time.Duration(cfg.TokenTTLMin) * time.Minute,
	}

	if cfg.TokenSecret != "" {
		codecCfg.Secret = cfg.TokenSecret
		return gatekeeper.NewTokenCodec(codecCfg)
	}

	privateKey, err := crypto.LoadRSAPrivateKey(cfg.TokenPrivateKeyFile)
	if err != nil {
		return nil, err
	}
	publicKey, err := crypto.LoadRSAPublicKey(cfg.TokenPublicKeyFile)
	if err != nil {
		return nil, err
	}

	codecCfg.PrivateKey = privateKey
	codecCfg.PublicKey = publicKey

	return gatekeeper.NewTokenCodec(codecCfg)
}
