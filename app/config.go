package parley

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	DevMode  = "dev"
	ProdMode = "prod"
)

type Config struct {
	// Port is the Port number to listen on. The default is 8080.
	Port int `validate:"required,port"`
	// Hostname is the Hostname to listen on. The default is 0.0.0.0.
	Hostname string `validate:"required"`
	// Mode is either dev or prod. The default is dev.
	Mode string `validate:"required,oneof=dev prod"`
	Auth struct {
		// Secret is the Secret key used to sign JWT tokens.
		// The secret must be a base64 encoded string. The default is a random 32 byte string.
		Secret Base64Encoded `validate:"required"`
		// TokenTTL is how long a session token stays valid. The default is 24h.
		TokenTTL time.Duration `validate:"required"`
	}
	SQLite struct {
		// File is the path to the SQLite database file.
		File string `validate:"required"`
		// Migrations is the path to the directory that the migration files reside.
		Migrations string `validate:"required"`
	}
	// Redis is optional. When Addr is empty membership is cached in memory.
	Redis struct {
		Addr     string
		Password string
		DB       int `validate:"gte=0"`
		TTL      time.Duration
	}
	WS struct {
		SendBuffer      int     `validate:"gte=1"`
		MaxMessageSize  int64   `validate:"gte=512"`
		EventsPerSecond float64 `validate:"gte=0"`
		EventBurst      int     `validate:"gte=0"`
	}
	// RateLimit applies to the unauthenticated auth endpoints, per client address.
	RateLimit struct {
		RPS   float64 `validate:"gte=0"`
		Burst int     `validate:"gte=0"`
	}
	// AllowedOrigins is a list of origins that are allowed to connect to the server.
	// The default is ["*"].
	AllowedOrigins []string
	// LogLevel is one of debug, info, warn or error. The default is info.
	LogLevel string `validate:"oneof=debug info warn error"`
	TLS      struct {
		Crt string `validate:"required_with=Key"`
		Key string `validate:"required_with=Crt"`
	}
	valid bool
}

type Base64Encoded []byte

func (b *Base64Encoded) UnmarshalText(text []byte) error {
	dec, err := base64.StdEncoding.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("base64 decode: %w", err)
	}
	*b = dec
	return nil
}

func setDefaults(v *viper.Viper) error {
	v.SetDefault("port", 8080)
	v.SetDefault("hostname", "0.0.0.0")
	v.SetDefault("mode", DevMode)

	// generate a random secret key
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return fmt.Errorf("generate secret: %w", err)
	}
	v.SetDefault("auth.secret", base64.StdEncoding.EncodeToString(secret))
	v.SetDefault("auth.tokenTTL", "24h")

	v.SetDefault("sqlite.file", "./parley.db")
	v.SetDefault("sqlite.migrations", "./migrations")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "5m")

	v.SetDefault("ws.sendBuffer", 256)
	v.SetDefault("ws.maxMessageSize", 64*1024)
	v.SetDefault("ws.eventsPerSecond", 20)
	v.SetDefault("ws.eventBurst", 40)

	v.SetDefault("rateLimit.rps", 5)
	v.SetDefault("rateLimit.burst", 10)

	v.SetDefault("allowedOrigins", []string{"*"})
	v.SetDefault("logLevel", "info")
	v.SetDefault("tls.crt", "")
	v.SetDefault("tls.key", "")
	return nil
}

// LoadConfig loads the configuration from an optional .env file, the config file and environment variables.
// Environment variables use underscores for nesting, e.g. AUTH_SECRET or WS_SENDBUFFER.
// Any invalid configuration will not be loaded, and the error will be caught in the validation step.
func LoadConfig(paths ...string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := setDefaults(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config,
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(",")),
		),
	); err != nil {
		// defer error to validation step
		return config, nil
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.valid {
		return nil
	}
	if err := validate.Struct(c); err != nil {
		return err
	}
	c.valid = true
	return nil
}

func FormatValidationErrors(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	trans, _ := uniTrans.GetTranslator("en")
	translated := errs.Translate(trans)

	var sb strings.Builder
	for v := range maps.Values(translated) {
		sb.WriteString(v)
		sb.WriteString("\n")
	}
	return sb.String()
}
