package fs

import (
	"context"
	"time"
)

// ConfigInfo carries the tunables shared across protocol adapters:
// timeouts, retry counts, and default concurrency limits. It travels on
// the context the way rclone's fs.ConfigInfo does.
type ConfigInfo struct {
	LowLevelRetries int           // number of low-level retries to attempt
	Timeout         time.Duration // IO idle timeout
	ConnectTimeout  time.Duration // time to wait for a connect to complete
	MaxConnections  int           // max simultaneous connections per host, 0 = unlimited
}

// NewConfig returns a ConfigInfo populated with conservative defaults.
func NewConfig() *ConfigInfo {
	return &ConfigInfo{
		LowLevelRetries: 3,
		Timeout:         5 * time.Minute,
		ConnectTimeout:  1 * time.Minute,
		MaxConnections:  0,
	}
}

type configContextKeyType struct{}

var configContextKey = configContextKeyType{}

// GetConfig returns the ConfigInfo carried on ctx, or a fresh default one
// if none was ever attached.
func GetConfig(ctx context.Context) *ConfigInfo {
	if ctx == nil {
		return NewConfig()
	}
	c, ok := ctx.Value(configContextKey).(*ConfigInfo)
	if !ok {
		return NewConfig()
	}
	return c
}

// AddConfig attaches a copy of the ConfigInfo from ctx (or the default)
// to a new context, returning both the new context and a pointer to the
// copy so the caller can mutate it before use.
func AddConfig(ctx context.Context) (context.Context, *ConfigInfo) {
	c := *GetConfig(ctx)
	newCtx := context.WithValue(ctx, configContextKey, &c)
	return newCtx, &c
}
