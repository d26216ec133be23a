package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App struct {
		Env             string        `env:"APP_ENV" env-default:"development"`
		Port            int           `env:"APP_PORT" env-default:"8080"`
		PublicURL       string        `env:"APP_PUBLIC_URL" env-default:"http://localhost:8080"`
		SentryUrl       string        `env:"SENTRY_URL"`
		ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" env-default:"15s"`
	}
	Postgres struct {
		Port    int    `env:"POSTGRES_PORT" env-default:"5432"`
		Host    string `env:"POSTGRES_HOST" env-default:"localhost"`
		User    string `env:"POSTGRES_USER"`
		Pass    string `env:"POSTGRES_PASS"`
		Name    string `env:"POSTGRES_NAME"`
		SslMode string `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	}
	Redis struct {
		Addr       string        `env:"REDIS_ADDR"`
		Password   string        `env:"REDIS_PASSWORD"`
		DB         int           `env:"REDIS_DB" env-default:"0"`
		ProfileTTL time.Duration `env:"REDIS_PROFILE_TTL" env-default:"1h"`
	}
	S3 struct {
		Region        string `env:"S3_REGION" env-default:"us-east-1"`
		Endpoint      string `env:"S3_ENDPOINT"`
		Bucket        string `env:"S3_BUCKET"`
		AccessKey     string `env:"S3_ACCESS_KEY"`
		SecretKey     string `env:"S3_SECRET_KEY"`
		PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`
		IPFSGateway   string `env:"S3_IPFS_GATEWAY"`
		UsePathStyle  bool   `env:"S3_USE_PATH_STYLE" env-default:"true"`
	}
	Auth struct {
		JWTSecret  string        `env:"AUTH_JWT_SECRET"`
		TokenTTL   time.Duration `env:"AUTH_TOKEN_TTL" env-default:"168h"`
		CookieName string        `env:"AUTH_COOKIE_NAME" env-default:"fary_session"`
	}
	Neynar struct {
		APIKey  string `env:"NEYNAR_API_KEY"`
		BaseURL string `env:"NEYNAR_BASE_URL" env-default:"https://api.neynar.com"`
	}
	Telegram struct {
		Token   string `env:"TELEGRAM_TOKEN"`
		Channel string `env:"TELEGRAM_CHANNEL"`
	}
	Stories struct {
		TTL             time.Duration `env:"STORIES_TTL" env-default:"24h"`
		Retention       time.Duration `env:"STORIES_RETENTION" env-default:"24h"`
		CleanupInterval time.Duration `env:"STORIES_CLEANUP_INTERVAL" env-default:"1h"`
		MaxUploadBytes  int64         `env:"STORIES_MAX_UPLOAD_BYTES" env-default:"52428800"`
		PublishPerHour  int           `env:"STORIES_PUBLISH_PER_HOUR" env-default:"20"`
		PublishBurst    int           `env:"STORIES_PUBLISH_BURST" env-default:"5"`
		Workers         int           `env:"STORIES_WORKERS" env-default:"8"`
	}
	HTTP struct {
		RequestsPerMinute int `env:"HTTP_REQUESTS_PER_MINUTE" env-default:"600"`
	}
	Playback struct {
		ImageDuration        time.Duration `env:"PLAYBACK_IMAGE_DURATION" env-default:"5s"`
		TickInterval         time.Duration `env:"PLAYBACK_TICK_INTERVAL" env-default:"30ms"`
		EndGrace             time.Duration `env:"PLAYBACK_END_GRACE" env-default:"500ms"`
		NavigationLock       time.Duration `env:"PLAYBACK_NAVIGATION_LOCK" env-default:"300ms"`
		FallbackVideoSeconds float64       `env:"PLAYBACK_FALLBACK_VIDEO_SECONDS" env-default:"15"`
	}
	Preload struct {
		Workers            int           `env:"PRELOAD_WORKERS" env-default:"8"`
		Timeout            time.Duration `env:"PRELOAD_TIMEOUT" env-default:"20s"`
		VideoPrefetchBytes int64         `env:"PRELOAD_VIDEO_PREFETCH_BYTES" env-default:"1048576"`
		MaxImageBytes      int64         `env:"PRELOAD_MAX_IMAGE_BYTES" env-default:"52428800"`
	}
	Player struct {
		APIURL    string `env:"PLAYER_API_URL" env-default:"http://localhost:8080"`
		Token     string `env:"PLAYER_TOKEN"`
		ViewerKey string `env:"PLAYER_VIEWER_KEY"`
	}
}

var (
	once sync.Once
	cfg  *Config
)

func New() (*Config, error) {
	once.Do(func() {
		c, err := Load()
		if err != nil {
			help, _ := cleanenv.GetDescription(&Config{}, nil)
			log.Fatalf("Failed to read configuration: %v\n%v", err, help)
		}
		cfg = c
	})
	return cfg, nil
}

// Load reads the environment on every call.
func Load() (*Config, error) {
	c := &Config{}
	if err := cleanenv.ReadEnv(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf("dbname=%s user=%s password=%s host=%s port=%d sslmode=%s",
		c.Postgres.Name, c.Postgres.User, c.Postgres.Pass, c.Postgres.Host, c.Postgres.Port, c.Postgres.SslMode,
	)
}

func (c *Config) GetPgxURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User, c.Postgres.Pass, c.Postgres.Host, c.Postgres.Port, c.Postgres.Name, c.Postgres.SslMode,
	)
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}
