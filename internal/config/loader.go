package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Source produces the user part of a configuration. Defaults are applied by Resolve.
type Source interface {
	Load(ctx context.Context) (*Config, error)
}

// FileSource reads a YAML, JSON or TOML file.
type FileSource string

// Load reads the configuration from the file (e.g., "localstack.yaml")
func (f FileSource) Load(_ context.Context) (*Config, error) {
	filename := string(f)

	if _, err := os.Stat(filename); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %s not found", filename)
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filename)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationHook,
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &cfg, nil
}

// FuncSource builds the configuration in code, e.g. from a TestMain.
type FuncSource func(ctx context.Context) (*Config, error)

func (f FuncSource) Load(ctx context.Context) (*Config, error) {
	cfg, err := f(ctx)
	if err != nil {
		return nil, fmt.Errorf("config function failed: %w", err)
	}
	if cfg == nil {
		return &Config{}, nil
	}
	return cfg, nil
}

// Static wraps an already built configuration.
func Static(cfg Config) Source {
	return FuncSource(func(context.Context) (*Config, error) {
		return &cfg, nil
	})
}

// Resolve loads src and overlays it on Defaults: every field the source sets
// wins, the rest keeps its default.
func Resolve(ctx context.Context, src Source) (*Config, error) {
	user, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}

	merged := *user
	if err := mergo.Merge(&merged, Defaults()); err != nil {
		return nil, fmt.Errorf("unable to merge defaults: %w", err)
	}

	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// Validate checks the fields the provisioner cannot work without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Image) == "" {
		return errors.New("image must not be empty")
	}
	if c.ReadyTimeout <= 0 {
		return fmt.Errorf("readyTimeout must be positive, got %s", c.ReadyTimeout)
	}
	for i, t := range c.DynamoTables {
		if aws.ToString(t.TableName) == "" {
			return fmt.Errorf("dynamoTables[%d]: TableName is required", i)
		}
	}
	for i, s := range c.KinesisStreams {
		if aws.ToString(s.StreamName) == "" {
			return fmt.Errorf("kinesisStreams[%d]: StreamName is required", i)
		}
	}
	for i, b := range c.S3Buckets {
		if b.Name == "" {
			return fmt.Errorf("s3Buckets[%d]: name is required", i)
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// durationHook reads bare numbers as milliseconds and strings as Go durations.
func durationHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}

	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case int64:
		return time.Duration(v) * time.Millisecond, nil
	case uint64:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		return time.Duration(v * float64(time.Millisecond)), nil
	case string:
		if ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond, nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q: %w", v, err)
		}
		return d, nil
	}
	return data, nil
}
