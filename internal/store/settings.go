package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/stocklog/internal/record"
)

const traceOriginOption = "trace_origin"

// Settings returns the persisted capture settings, falling back to
// record.DefaultSettings for anything not stored.
func (s *Store) Settings(ctx context.Context) (record.Settings, error) {
	settings := record.DefaultSettings()

	value, ok, err := s.option(ctx, traceOriginOption)
	if err != nil {
		return settings, fmt.Errorf("read settings: %w", err)
	}
	if ok {
		trace, err := strconv.ParseBool(value)
		if err != nil {
			return settings, fmt.Errorf("read settings: parse %s %q: %w", traceOriginOption, value, err)
		}
		settings.TraceOrigin = trace
	}
	return settings, nil
}

// SaveSettings persists the capture settings.
func (s *Store) SaveSettings(ctx context.Context, settings record.Settings) error {
	if err := s.setOption(ctx, traceOriginOption, strconv.FormatBool(settings.TraceOrigin)); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// InitDefaults stores the default settings unless settings already exist.
func (s *Store) InitDefaults(ctx context.Context) error {
	_, ok, err := s.option(ctx, traceOriginOption)
	if err != nil {
		return fmt.Errorf("init defaults: %w", err)
	}
	if ok {
		return nil
	}
	return s.SaveSettings(ctx, record.DefaultSettings())
}

func (s *Store) option(ctx context.Context, name string) (string, bool, error) {
	c := s.d.compiler()
	stmt := "SELECT value FROM stocklog_options WHERE name = " + c.Param(name)

	var value string
	err := s.db.QueryRowContext(ctx, stmt, c.Params()...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) setOption(ctx context.Context, name, value string) error {
	c := s.d.compiler()
	stmt := fmt.Sprintf(`
		INSERT INTO stocklog_options (name, value) VALUES (%s, %s)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		c.Param(name), c.Param(value))
	_, err := s.db.ExecContext(ctx, stmt, c.Params()...)
	return err
}
