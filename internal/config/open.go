package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/dbstore/engine"
	"github.com/roach88/dbstore/engine/mongodoc"
	"github.com/roach88/dbstore/engine/sqlitedoc"
	"github.com/roach88/dbstore/store"
)

// Logger builds the process logger. verbose forces debug level.
func (c Config) Logger(w io.Writer, verbose bool) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if verbose {
		level = slog.LevelDebug
	}

	hopts := &slog.HandlerOptions{Level: level}
	switch c.Log.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Log.Format)
	}
}

// NamingStrategy maps the naming key to a store strategy.
func (c Config) NamingStrategy() (store.NamingStrategy, error) {
	switch c.Naming {
	case "qualified", "":
		return store.QualifiedNaming, nil
	case "simple":
		return store.SimpleNaming, nil
	case "snake":
		return store.SnakeNaming, nil
	default:
		return nil, fmt.Errorf("unknown naming strategy %q", c.Naming)
	}
}

// OpenEngine connects the configured engine.
func (c Config) OpenEngine(ctx context.Context, log *slog.Logger) (engine.Engine, error) {
	switch c.Engine {
	case EngineSQLite, "":
		eng, err := sqlitedoc.Open(c.SQLite.Dir,
			sqlitedoc.WithMaxOpenConns(c.SQLite.MaxOpenConns),
			sqlitedoc.WithBusyTimeout(c.SQLite.BusyTimeout),
			sqlitedoc.WithLogger(log),
		)
		if err != nil {
			return nil, err
		}
		return eng, nil
	case EngineMongo:
		eng, err := mongodoc.Connect(ctx, c.Mongo.URI,
			mongodoc.WithConnectTimeout(c.Mongo.ConnectTimeout),
			mongodoc.WithChunkSize(int32(c.Mongo.ChunkSize)),
			mongodoc.WithLogger(log),
		)
		if err != nil {
			return nil, err
		}
		return eng, nil
	default:
		return nil, fmt.Errorf("unknown engine %q", c.Engine)
	}
}

// OpenStore connects the engine and wraps it in a Store. Extra options are
// applied after the configured ones.
func (c Config) OpenStore(ctx context.Context, log *slog.Logger, opts ...store.Option) (*store.Store, error) {
	naming, err := c.NamingStrategy()
	if err != nil {
		return nil, err
	}
	eng, err := c.OpenEngine(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("open %s engine: %w", c.Engine, err)
	}

	base := []store.Option{
		store.WithLogger(log),
		store.WithNamingStrategy(naming),
		store.WithDefaultDatabase(c.Database),
	}
	return store.New(eng, append(base, opts...)...), nil
}
