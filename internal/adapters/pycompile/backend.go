package pycompile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"formatif-grader/internal/domain/model"
	"formatif-grader/internal/services/pysyntax"
)

// Backend is the syntax checking contract shared with the validator.
type Backend interface {
	CheckSyntax(ctx context.Context, filename, src string) error
}

// Select returns the backend named by mode (builtin, docker or auto) and a
// func releasing it. In auto mode the container is used when the daemon
// answers, falling back to the builtin checker per call if it stops answering.
func Select(ctx context.Context, mode, imageRef string, logger *zap.Logger) (Backend, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	noop := func() error { return nil }
	switch mode {
	case "builtin":
		return pysyntax.Checker{}, noop, nil
	case "docker":
		c, err := New(imageRef, logger)
		if err != nil {
			return nil, noop, err
		}
		if !c.Available(ctx) {
			_ = c.Close()
			return nil, noop, fmt.Errorf("docker daemon not reachable: %w", model.ErrLibraryUnavailable)
		}
		return c, c.Close, nil
	case "auto", "":
		c, err := New(imageRef, logger)
		if err != nil {
			logger.Info("docker unavailable, using builtin syntax checker", zap.Error(err))
			return pysyntax.Checker{}, noop, nil
		}
		if !c.Available(ctx) {
			_ = c.Close()
			logger.Info("docker daemon not reachable, using builtin syntax checker")
			return pysyntax.Checker{}, noop, nil
		}
		return WithFallback(c, pysyntax.Checker{}, logger), c.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown syntax backend %q", mode)
	}
}

type fallback struct {
	primary, secondary Backend
	logger             *zap.Logger
}

// WithFallback consults secondary whenever primary fails for a reason other
// than a syntax error.
func WithFallback(primary, secondary Backend, logger *zap.Logger) Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &fallback{primary: primary, secondary: secondary, logger: logger}
}

func (f *fallback) CheckSyntax(ctx context.Context, filename, src string) error {
	err := f.primary.CheckSyntax(ctx, filename, src)
	var syn *pysyntax.Error
	if err == nil || errors.As(err, &syn) {
		return err
	}
	f.logger.Warn("primary syntax backend failed, falling back", zap.String("file", filename), zap.Error(err))
	return f.secondary.CheckSyntax(ctx, filename, src)
}
