package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
)

// Sink names accepted by SINK.
const (
	SinkKafka = "kafka"
	SinkMQTT  = "mqtt"
)

// Config holds all service settings, populated from environment variables.
// The env tag names the variable a field is read from and is used in
// validation errors.
type Config struct {
	// Weather Underground source.
	APIKey           string        `env:"WU_API_KEY" validate:"required"`
	StationID        string        `env:"WU_STATION_ID" validate:"required,alphanum"`
	Host             string        `env:"WU_HOST" validate:"required,hostname|ip"`
	Port             int           `env:"WU_PORT" validate:"min=1,max=65535"`
	Endpoint         string        `env:"WU_ENDPOINT" validate:"required"`
	ArrayMarker      string        `env:"WU_ARRAY_MARKER" validate:"required"`
	MaxRecords       int           `env:"WU_MAX_RECORDS" validate:"min=1,max=1000"`
	DecodeBufferSize int           `env:"WU_DECODE_BUFFER" validate:"min=256,max=65536"`
	DialTimeout      time.Duration `env:"WU_DIAL_TIMEOUT" validate:"gt=0"`
	IOTimeout        time.Duration `env:"WU_IO_TIMEOUT" validate:"gt=0"`

	PollInterval time.Duration `env:"POLL_INTERVAL" validate:"min=1s"`
	DedupWindow  int           `env:"DEDUP_WINDOW" validate:"min=0"`

	Sink         string   `env:"SINK" validate:"oneof=kafka mqtt"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" validate:"dive,hostname_port"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" validate:"required_if=Sink kafka"`
	MQTTBroker   string   `env:"MQTT_BROKER" validate:"required_if=Sink mqtt"`
	MQTTPort     int      `env:"MQTT_PORT" validate:"min=1,max=65535"`
	MQTTClientID string   `env:"MQTT_CLIENT_ID" validate:"required_if=Sink mqtt"`

	HTTPAddr        string        `env:"HTTP_ADDR" validate:"required"`
	LogLevel        string        `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat       string        `env:"LOG_FORMAT" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("env")
	})
	return v
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	var errs []error
	intVar := func(key string, def int) int {
		n, err := parseInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return n
	}
	durationVar := func(key, def string) time.Duration {
		d, err := parseDuration(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}

	cfg := &Config{
		APIKey:           os.Getenv("WU_API_KEY"),
		StationID:        os.Getenv("WU_STATION_ID"),
		Host:             sharedcfg.EnvOrDefault("WU_HOST", "api.weather.com"),
		Port:             intVar("WU_PORT", 443),
		Endpoint:         sharedcfg.EnvOrDefault("WU_ENDPOINT", "v2/pws/observations/all/1day"),
		ArrayMarker:      sharedcfg.EnvOrDefault("WU_ARRAY_MARKER", `"observations":[`),
		MaxRecords:       intVar("WU_MAX_RECORDS", 24),
		DecodeBufferSize: intVar("WU_DECODE_BUFFER", 2048),
		DialTimeout:      durationVar("WU_DIAL_TIMEOUT", "10s"),
		IOTimeout:        durationVar("WU_IO_TIMEOUT", "15s"),

		PollInterval: durationVar("POLL_INTERVAL", "5m"),
		DedupWindow:  intVar("DEDUP_WINDOW", 1024),

		Sink:         sharedcfg.EnvOrDefault("SINK", SinkKafka),
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "pws-observations"),
		MQTTBroker:   sharedcfg.EnvOrDefault("MQTT_BROKER", "localhost"),
		MQTTPort:     intVar("MQTT_PORT", 1883),
		MQTTClientID: sharedcfg.EnvOrDefault("MQTT_CLIENT_ID", "pws-feed"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, describe(err)
	}
	if cfg.Sink == SinkKafka && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when SINK is kafka")
	}

	return cfg, nil
}

// describe rewrites validator errors in terms of environment variables.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			errs = append(errs, fmt.Errorf("%s is required", fe.Field()))
		case "required_if":
			field, value, _ := strings.Cut(fe.Param(), " ")
			errs = append(errs, fmt.Errorf("%s is required when %s is %s", fe.Field(), envName(field), value))
		default:
			if fe.Param() != "" {
				errs = append(errs, fmt.Errorf("invalid %s %q: must satisfy %s=%s", fe.Field(), fmt.Sprint(fe.Value()), fe.Tag(), fe.Param()))
			} else {
				errs = append(errs, fmt.Errorf("invalid %s %q: must satisfy %s", fe.Field(), fmt.Sprint(fe.Value()), fe.Tag()))
			}
		}
	}
	return errors.Join(errs...)
}

func envName(field string) string {
	if f, ok := reflect.TypeFor[Config]().FieldByName(field); ok {
		return f.Tag.Get("env")
	}
	return field
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}
