package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/gomantics/gitwatch/api"
	"github.com/gomantics/gitwatch/config"
	"github.com/gomantics/gitwatch/db"
	"github.com/gomantics/gitwatch/domains/commands"
	"github.com/gomantics/gitwatch/domains/cursors"
	"github.com/gomantics/gitwatch/domains/repos"
	"github.com/gomantics/gitwatch/domains/watcher"
	"github.com/gomantics/gitwatch/libs/chat"
	"github.com/gomantics/gitwatch/libs/gitrepo"
	"github.com/gomantics/gitwatch/pkg/logger"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Watch repositories and serve the chat gateway API",
		Long: `Load the repository configuration, clone missing mirrors, then fetch and
poll every repository in the background. Settings come from GITWATCH_*
environment variables and are re-read after every poll.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Validate(); err != nil {
				return err
			}
			fx.New(Options()).Run()
			return nil
		},
	}
}

// Options is the application graph.
func Options() fx.Option {
	return fx.Options(
		fx.Provide(
			logger.New,
			newBackend,
			newRegistry,
			cursors.New,
			newWatcher,
			newCommands,
		),
		fx.Decorate(func(l *zap.Logger) *zap.Logger {
			return l.With(zap.String("service", "gitwatch"))
		}),
		fx.Invoke(
			db.Init,
			watcher.Register,
			api.Run,
		),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{
				Logger: l,
			}
		}),
	)
}

func newBackend(l *zap.Logger) gitrepo.Backend {
	opts := gitrepo.DefaultOptions()
	opts.FetchTimeout = config.Watch.FetchTimeout()
	return gitrepo.NewClient(l, opts)
}

func newRegistry(l *zap.Logger) (*chat.Registry, error) {
	var sink chat.Sink = chat.NewLogSink(l)
	if url := config.Chat.WebhookURL(); url != "" {
		sink = chat.NewWebhookSink(url)
	}

	conn := config.Chat.Connection()
	reg := chat.NewRegistry()
	reg.Register(conn, sink)
	for _, ch := range config.Chat.Channels() {
		if err := reg.Join(conn, ch); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func newWatcher(l *zap.Logger, backend gitrepo.Backend, reg *chat.Registry, store repos.CursorStore) *watcher.Watcher {
	load := func(ctx context.Context) ([]*repos.Repository, error) {
		return repos.LoadFile(ctx, l, backend, store, config.Watch.RepoDir(), config.Watch.ConfigFile())
	}
	return watcher.New(l, config.Watch, reg, store, load)
}

func newCommands(l *zap.Logger, w *watcher.Watcher) *commands.Service {
	return commands.NewService(l, w, config.Watch)
}
