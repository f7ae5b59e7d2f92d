package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string         `yaml:"env" env:"ENV" env-default:"local" json:"env"`
	HTTPServer HTTPServer     `yaml:"http_server" json:"-"`
	Session    SessionConfig  `yaml:"session" json:"session"`
	Server     ServerConfig   `yaml:"server" json:"-"`
	Polling    PollingConfig  `yaml:"polling" json:"polling"`
	Dispatch   DispatchConfig `yaml:"dispatch" json:"dispatch"`
	Capture    CaptureConfig  `yaml:"capture" json:"-"`
	Cache      CacheConfig    `yaml:"cache" json:"cache"`
	S3         S3Config       `yaml:"s3" json:"-"`
}

// SessionConfig carries the values the chat server used to inject into its
// page templates.
type SessionConfig struct {
	CurrentUser   string `yaml:"current_user" env:"CURRENT_USER" env-required:"true" json:"current_user"`
	OtherUser     string `yaml:"other_user" env:"OTHER_USER" json:"other_user"`
	CSRFToken     string `yaml:"csrf_token" env:"CSRF_TOKEN" json:"-"`
	SessionCookie string `yaml:"session_cookie" env:"SESSION_COOKIE" json:"-"`
}

type ServerConfig struct {
	BaseURL         string        `yaml:"base_url" env:"CHAT_SERVER_URL" env-required:"true"`
	SendMessagePath string        `yaml:"send_message_path" env-default:"/send-message/"`
	MessagesPath    string        `yaml:"messages_path" env-default:"/chat/{username}/get-messages/"`
	ChatListPath    string        `yaml:"chat_list_path" env-default:"/chat/list/{username}/"`
	Timeout         time.Duration `yaml:"timeout" env-default:"15s"`
}

type PollingConfig struct {
	ChatInterval     time.Duration `yaml:"chat_interval" env-default:"3s" json:"chat_interval"`
	ChatListInterval time.Duration `yaml:"chat_list_interval" env-default:"5s" json:"chat_list_interval"`
}

type DispatchConfig struct {
	SuccessIndicator time.Duration `yaml:"success_indicator" env-default:"2s" json:"success_indicator"`
}

type CaptureConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path" env-default:"ffmpeg"`
	FFprobePath string `yaml:"ffprobe_path" env-default:"ffprobe"`
	InputFormat string `yaml:"input_format" env-default:"pulse"`
	InputDevice string `yaml:"input_device" env-default:"default"`
}

type CacheConfig struct {
	Name     string   `yaml:"name" env-default:"trimer-cache-v1" json:"name"`
	Store    string   `yaml:"store" env:"CACHE_STORE" env-default:"memory" json:"store"`
	DSN      string   `yaml:"dsn" env:"CACHE_DSN" json:"-"`
	Path     string   `yaml:"path" env-default:"data/cache" json:"-"`
	Precache []string `yaml:"precache" json:"precache"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket" env:"S3_BUCKET"`
	Region    string `yaml:"region" env:"S3_REGION"`
	Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY"`
	Prefix    string `yaml:"prefix" env-default:"caches/"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env-default:"localhost:8082" json:"-"`
	Timeout     time.Duration `yaml:"timeout" env-default:"20s" json:"-"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s" json:"-"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config %s", err)
	}

	return cfg
}

func Load(configPath string) (*Config, error) {
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
