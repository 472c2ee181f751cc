package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/feeta/feeta/pkg/clog"
)

const namespace = "FEETA"

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

type ClientEnv struct {
	APIURL          string        `envconfig:"API_URL" default:"http://localhost:5000"`
	Token           string        `envconfig:"TOKEN"`
	TokenFile       string        `envconfig:"TOKEN_FILE"`
	HTTPTimeout     time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"60s"`
	ClassifierFile  string        `envconfig:"CLASSIFIER_FILE"`
}

type AlertEnv struct {
	VAPIDPublicKey    string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey   string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDContact      string `envconfig:"VAPID_CONTACT" default:"mailto:admin@localhost"`
	SubscriptionsFile string `envconfig:"SUBSCRIPTIONS_FILE" default:".feeta/subscriptions.yaml"`
}

// Enabled reports whether both VAPID keys are set.
func (e *AlertEnv) Enabled() bool {
	return e.VAPIDPublicKey != "" && e.VAPIDPrivateKey != ""
}

type StubEnv struct {
	HTTPHost      string `envconfig:"HTTP_HOST" default:""`
	HTTPPort      string `envconfig:"HTTP_PORT" default:"5000"`
	APIKey        string `envconfig:"API_KEY" required:"true"`
	SlackChannels string `envconfig:"SLACK_CHANNELS"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".feeta/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"feeta/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
}

type ClientConfig struct {
	BaseEnv
	ClientEnv
	AlertEnv
}

type StubConfig struct {
	BaseEnv
	StubEnv
	StorageEnv
}

func LoadClientEnv() (*ClientConfig, error) {
	var env ClientConfig
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func LoadStubEnv() (*StubConfig, error) {
	var env StubConfig
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelInfo
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger builds the process logger: colored text for local runs, JSON
// everywhere else. Context attributes added through clog are always included.
func (e *BaseEnv) NewLogger(w io.Writer) *slog.Logger {
	level := e.SlogLevel()
	var handler slog.Handler
	if e != nil && e.Env == "local" {
		handler = clog.NewTextHandler(w, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(clog.NewAttributesHandler(handler))
}

type Channel struct {
	ID   string
	Name string
}

// Channels parses SLACK_CHANNELS, a comma separated list of id:name pairs.
// A bare id uses itself as the name.
func (e *StubEnv) Channels() ([]Channel, error) {
	var out []Channel
	for _, part := range strings.Split(e.SlackChannels, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, name, _ := strings.Cut(part, ":")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("invalid channel entry %q", part)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name = id
		}
		out = append(out, Channel{ID: id, Name: name})
	}
	return out, nil
}
