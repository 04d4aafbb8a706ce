// pkg/logger/logger.go
package logger

import (
	"go.uber.org/zap"
)

type Sugared = *zap.SugaredLogger

func New(env string) Sugared {
	var z *zap.Logger
	if env == "prod" {
		z, _ = zap.NewProduction()
	} else {
		z, _ = zap.NewDevelopment()
	}
	return z.Sugar().With("sdk", "slashid")
}

// Nop discards everything. Library packages use it when no logger is given.
func Nop() Sugared { return zap.NewNop().Sugar() }
