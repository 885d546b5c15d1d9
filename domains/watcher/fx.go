package watcher

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Register ties the watcher to the application lifecycle.
func Register(lc fx.Lifecycle, l *zap.Logger, w *Watcher) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return w.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			l.Info("stopping watcher")
			w.Stop()
			return nil
		},
	})
}
