package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gomantics/gitwatch/config"
	"github.com/gomantics/gitwatch/domains/format"
	"github.com/gomantics/gitwatch/domains/repos"
	"github.com/gomantics/gitwatch/libs/gitrepo"
	"github.com/gomantics/gitwatch/pkg/logger"
)

// RenderCmd returns the render command
func RenderCmd() *cobra.Command {
	var template string

	cmd := &cobra.Command{
		Use:   "render <short name> [count]",
		Short: "Render recent commits of a configured repository",
		Long: `Open (or clone) the mirror of a configured repository and print its most
recent commits exactly as they would be announced. Use --template to try a
template other than the configured commit message.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			count := 1
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n <= 0 {
					return fmt.Errorf("count must be a positive number: %q", args[1])
				}
				count = n
			}
			return render(cmd.Context(), cmd.OutOrStdout(), args[0], count, template)
		},
	}

	cmd.Flags().StringVarP(&template, "template", "t", "", "template to render instead of the configured commit message")
	return cmd
}

func render(ctx context.Context, w io.Writer, name string, count int, template string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	l := logger.New()
	defer func() { _ = l.Sync() }()

	defs, err := repos.ParseFile(config.Watch.ConfigFile())
	if err != nil {
		return err
	}

	var def *repos.Definition
	for i := range defs {
		if defs[i].ShortName == name {
			def = &defs[i]
			break
		}
	}
	if def == nil {
		return fmt.Errorf("%w: %s", repos.ErrNotFound, name)
	}
	if template != "" {
		def.CommitMessage = template
	}

	opts := gitrepo.DefaultOptions()
	opts.FetchTimeout = config.Watch.FetchTimeout()
	r, err := repos.New(ctx, l, gitrepo.NewClient(l, opts), nil, config.Watch.RepoDir(), *def)
	if err != nil {
		return err
	}

	var commits []gitrepo.Commit
	err = r.With(ctx, func(sess *repos.Session) error {
		var err error
		commits, err = sess.RecentCommits(count)
		return err
	})
	if err != nil {
		return err
	}

	for i := len(commits) - 1; i >= 0; i-- {
		for _, line := range format.Message(r, commits[i]) {
			fmt.Fprintln(w, line)
		}
	}
	return nil
}
