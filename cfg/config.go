package cfg

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

type KakaoConfig struct {
	RestAPIKey   string
	ClientSecret string // optional, confidential clients only
}

type IdentityStoreConfig struct {
	BaseURL    string
	ServiceKey string
}

type ObservabilityConfig struct {
	ServiceName  string
	Environment  string
	OTLPEndpoint string // empty disables tracing/metrics export
}

type Config struct {
	AppEnv             string
	AppPort            string
	JWTSecret          string
	KakaoConfig        KakaoConfig
	IdentityStore      IdentityStoreConfig
	RedisConfig        RedisConfig
	Observability      ObservabilityConfig
	LoginRatePerMinute int
}

func Load() (*Config, error) {
	var errs []error

	// .env is optional outside local development
	_ = godotenv.Load()

	appEnv := mustEnv("APP_ENV", &errs)
	appPort := mustEnv("APP_PORT", &errs)
	jwtSecret := mustEnv("JWT_SECRET", &errs)

	kakaoRestAPIKey := mustEnv("KAKAO_REST_API_KEY", &errs)
	kakaoClientSecret := os.Getenv("KAKAO_CLIENT_SECRET")

	identityStoreURL := mustEnv("IDENTITY_STORE_URL", &errs)
	identityStoreKey := mustEnv("IDENTITY_STORE_SERVICE_KEY", &errs)

	redisHost := mustEnv("REDIS_HOST", &errs)
	redisPort := mustEnv("REDIS_PORT", &errs)
	redisPassword := mustEnv("REDIS_PASSWORD", &errs)

	loginRate := 30
	if v := os.Getenv("LOGIN_RATE_PER_MINUTE"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, errors.New("conversion failed env: LOGIN_RATE_PER_MINUTE"))
		} else {
			loginRate = parsed
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &Config{
		AppEnv:    appEnv,
		AppPort:   appPort,
		JWTSecret: jwtSecret,
		KakaoConfig: KakaoConfig{
			RestAPIKey:   kakaoRestAPIKey,
			ClientSecret: kakaoClientSecret,
		},
		IdentityStore: IdentityStoreConfig{
			BaseURL:    identityStoreURL,
			ServiceKey: identityStoreKey,
		},
		RedisConfig: RedisConfig{
			Host:     redisHost,
			Port:     redisPort,
			Password: redisPassword,
		},
		Observability: ObservabilityConfig{
			ServiceName:  "guildrunner",
			Environment:  appEnv,
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
		LoginRatePerMinute: loginRate,
	}, nil
}

func mustEnv(key string, errs *[]error) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		*errs = append(*errs, errors.New("missing env: "+key))
	}
	return value
}
