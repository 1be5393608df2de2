package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds everything the bot needs, loaded from environment variables
// with optional .env support.
type Config struct {
	BotToken string `envconfig:"BOT_TOKEN" required:"true"`

	// Booking site.
	PageURL string `envconfig:"BOOK_PAGE_URL" required:"true"`
	UserID  string `envconfig:"USER_ID" required:"true"`

	// Watched course IDs and the chats allowed to drive the bot (and
	// receiving booking notifications). Comma-separated in env.
	CourseIDs      []int   `envconfig:"COURSES" required:"true"`
	AllowedChatIDs []int64 `envconfig:"CHAT_ID_WHITELIST" required:"true"`

	ScanInterval time.Duration `envconfig:"SCAN_INTERVAL" default:"10s"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// Load reads configuration from the environment, with an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
