package logger

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/aliskhannn/ielts-mock-engine/internal/config"
)

const serviceName = "ielts-mock-engine"

// New builds a JSON logger in production and a console logger elsewhere.
// cfg.Log.Level, when set, overrides the environment's default level.
func New(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.Env == "production" {
		zc = zap.NewProductionConfig()
	}

	if cfg.Log.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		zc.Level = level
	}

	return zc.Build(zap.Fields(
		zap.String("service", serviceName),
		zap.String("env", cfg.Env),
	))
}
