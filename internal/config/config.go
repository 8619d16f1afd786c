// Package config loads dbstore settings from a YAML file and DBSTORE_*
// environment variables.
//
// Loading happens in four steps: the file is read into a generic map,
// environment overrides are overlaid, the merged map is checked against an
// embedded CUE schema, and finally it is decoded over Default().
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DBSTORE_"

// Engine kinds.
const (
	EngineSQLite = "sqlite"
	EngineMongo  = "mongo"
)

// Config is the complete dbstore configuration.
type Config struct {
	Engine   string       `mapstructure:"engine" yaml:"engine"`
	Database string       `mapstructure:"database" yaml:"database"`
	Naming   string       `mapstructure:"naming" yaml:"naming"`
	SQLite   SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`
	Mongo    MongoConfig  `mapstructure:"mongo" yaml:"mongo"`
	Log      LogConfig    `mapstructure:"log" yaml:"log"`
}

// SQLiteConfig configures the embedded engine.
type SQLiteConfig struct {
	Dir          string        `mapstructure:"dir" yaml:"dir"`
	MaxOpenConns int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	BusyTimeout  time.Duration `mapstructure:"busy_timeout" yaml:"busy_timeout"`
}

// MongoConfig configures the MongoDB engine.
type MongoConfig struct {
	URI            string        `mapstructure:"uri" yaml:"uri"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	ChunkSize      int           `mapstructure:"chunk_size" yaml:"chunk_size"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Engine:   EngineSQLite,
		Database: "default",
		Naming:   "qualified",
		SQLite: SQLiteConfig{
			Dir:          "./data",
			MaxOpenConns: 4,
			BusyTimeout:  5 * time.Second,
		},
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017",
			ConnectTimeout: 10 * time.Second,
			ChunkSize:      1024,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// Load reads path (if non-empty) and the process environment.
func Load(path string) (Config, error) {
	var data []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		data = b
	}
	return Parse(data, os.LookupEnv)
}

// Parse builds a Config from YAML data and the variables visible through
// lookup. Empty data is allowed.
func Parse(data []byte, lookup LookupFunc) (Config, error) {
	raw := map[string]any{}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}

	if lookup != nil {
		if err := overlayEnv(raw, lookup); err != nil {
			return Config{}, err
		}
	}

	if err := validate(raw); err != nil {
		return Config{}, err
	}

	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &cfg,
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// envKeys lists the dotted keys that can be overridden, in schema order.
var envKeys = []string{
	"engine",
	"database",
	"naming",
	"sqlite.dir",
	"sqlite.max_open_conns",
	"sqlite.busy_timeout",
	"mongo.uri",
	"mongo.connect_timeout",
	"mongo.chunk_size",
	"log.level",
	"log.format",
}

// EnvName returns the variable overriding a dotted key, e.g.
// "sqlite.busy_timeout" -> "DBSTORE_SQLITE_BUSY_TIMEOUT".
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func overlayEnv(raw map[string]any, lookup LookupFunc) error {
	for _, key := range envKeys {
		v, ok := lookup(EnvName(key))
		if !ok {
			continue
		}
		path := strings.Split(key, ".")
		m := raw
		for _, p := range path[:len(path)-1] {
			next, ok := m[p].(map[string]any)
			if !ok {
				if m[p] != nil {
					return fmt.Errorf("%s: %q is not a mapping", EnvName(key), p)
				}
				next = map[string]any{}
				m[p] = next
			}
			m = next
		}
		m[path[len(path)-1]] = scalar(v)
	}
	return nil
}

// scalar types an environment value the way YAML would, so "8" is an int
// and "5s" stays a string.
func scalar(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v.(type) {
	case int, float64, bool:
		return v
	default:
		return s
	}
}

// ValidationError reports a configuration rejected by the schema.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func validate(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def.Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// IsValidationError reports whether err came from schema validation.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
