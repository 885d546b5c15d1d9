// Package commands implements the chat command surface: log, repositories,
// rehash, and commit id snarfing.
package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/gomantics/gitwatch/domains/format"
	"github.com/gomantics/gitwatch/domains/repos"
	"github.com/gomantics/gitwatch/libs/gitrepo"
	"go.uber.org/zap"
)

var ErrUnknownCommand = errors.New("unknown command")

const (
	LogUsage = "(\x02log <short name> [count]\x02) -- Display the last commits on the named repository. [count] defaults to 1 if unspecified."

	msgNoRepository   = "No configured repository named %s."
	msgNotAllowed     = "Sorry, not allowed in this channel."
	msgNoRepositories = "No repositories configured for this channel."
	msgRepository     = "\x02%s\x02 (%s, branch: %s)"
	msgReloaded       = "Git reinitialized with %d %s."
	msgReloadFailed   = "Error reloading config: %s"
)

// maxLogCommits bounds the lines of one log reply when no burst cap is set.
const maxLogCommits = 100

var commitID = regexp.MustCompile(`\b[0-9a-f]{6,40}\b`)

// Watcher is the part of the watcher the commands need.
type Watcher interface {
	Repositories() []*repos.Repository
	Reload(ctx context.Context) (int, error)
}

// Settings are read live on every command.
type Settings interface {
	MaxCommitsAtOnce() int64
	SnarfEnabled() bool
}

type Service struct {
	l        *zap.Logger
	watcher  Watcher
	settings Settings
}

func NewService(l *zap.Logger, w Watcher, s Settings) *Service {
	return &Service{l: l.Named("commands"), watcher: w, settings: s}
}

// Execute runs the command in text on behalf of channel and returns the
// reply lines.
func (s *Service) Execute(ctx context.Context, channel, text string) ([]string, error) {
	args := strings.Fields(text)
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrUnknownCommand)
	}

	switch args[0] {
	case "log", "shortlog":
		if len(args) < 2 || len(args) > 3 {
			return []string{LogUsage}, nil
		}
		count := 1
		if len(args) == 3 {
			n, err := strconv.Atoi(args[2])
			if err != nil {
				return []string{LogUsage}, nil
			}
			count = n
		}
		return s.Log(ctx, channel, args[1], count)
	case "repositories", "repolist":
		return s.Repositories(channel), nil
	case "rehash", "gitrehash":
		return s.Rehash(ctx), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
}

// Log shows the count most recent commits of the named repository, oldest
// first, capped like a poll burst. Only the commits shown are read; the rest
// are counted for the summary line.
func (s *Service) Log(ctx context.Context, channel, name string, count int) ([]string, error) {
	if count <= 0 {
		return []string{LogUsage}, nil
	}

	r, err := repos.Find(s.watcher.Repositories(), name)
	if err != nil {
		return []string{fmt.Sprintf(msgNoRepository, name)}, nil
	}
	if !r.InChannel(channel) {
		return []string{msgNotAllowed}, nil
	}

	shown := min(count, maxLogCommits)
	if limit := int(s.settings.MaxCommitsAtOnce()); limit > 0 {
		shown = min(shown, limit)
	}

	var (
		commits []gitrepo.Commit
		total   int
	)
	err = r.With(ctx, func(sess *repos.Session) error {
		var err error
		if total, err = sess.CountCommits(count); err != nil {
			return err
		}
		commits, err = sess.RecentCommits(shown)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.ShortName, err)
	}

	slices.Reverse(commits)
	var out []string
	if total > len(commits) {
		out = append(out, format.Summary(r, len(commits), total))
	}
	for _, c := range commits {
		out = append(out, format.Message(r, c)...)
	}
	return out, nil
}

// Repositories lists the repositories announcing to channel.
func (s *Service) Repositories(channel string) []string {
	var out []string
	for _, r := range s.watcher.Repositories() {
		if r.InChannel(channel) {
			out = append(out, fmt.Sprintf(msgRepository, r.ShortName, r.LongName, r.BranchName()))
		}
	}
	if len(out) == 0 {
		return []string{msgNoRepositories}
	}
	return out
}

// Rehash reloads the repository configuration.
func (s *Service) Rehash(ctx context.Context) []string {
	n, err := s.watcher.Reload(ctx)
	if err != nil {
		s.l.Error("rehash failed", zap.Error(err))
		return []string{fmt.Sprintf(msgReloadFailed, err)}
	}
	noun := "repositories"
	if n == 1 {
		noun = "repository"
	}
	return []string{fmt.Sprintf(msgReloaded, n, noun)}
}

// Snarf looks for commit ids in ordinary chat text. The first id that
// resolves in a repository of channel is answered with that repository's
// reply template.
func (s *Service) Snarf(ctx context.Context, channel, text string) ([]string, error) {
	if !s.settings.SnarfEnabled() {
		return nil, nil
	}

	ids := commitID.FindAllString(text, -1)
	if len(ids) == 0 {
		return nil, nil
	}

	for _, r := range s.watcher.Repositories() {
		if !r.InChannel(channel) {
			continue
		}
		for _, id := range ids {
			lines, ok, err := s.lookup(ctx, r, id)
			if err != nil {
				return nil, err
			}
			if ok {
				return lines, nil
			}
		}
	}
	return nil, nil
}

func (s *Service) lookup(ctx context.Context, r *repos.Repository, id string) ([]string, bool, error) {
	var (
		c  gitrepo.Commit
		ok bool
	)
	err := r.With(ctx, func(sess *repos.Session) error {
		c, ok = sess.CommitByID(id)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	s.l.Debug("snarfed commit", zap.String("repo", r.ShortName), zap.String("commit", c.Hash))
	return format.Reply(r, c), true, nil
}
