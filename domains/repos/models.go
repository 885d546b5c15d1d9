package repos

import (
	"context"
	"fmt"
)

const (
	DefaultBranch        = "master"
	DefaultCommitMessage = "[%s|%b|%a] %m"
)

// Definition is one repository section of the configuration file.
type Definition struct {
	LongName      string
	ShortName     string
	URL           string
	Branch        string
	Channels      []string
	CommitLink    string
	CommitMessage string
	CommitReply   string
}

// ConfigError describes an invalid repository section.
type ConfigError struct {
	Section string
	Key     string
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("Section %s %s", e.Section, e.Reason)
	}
	return fmt.Sprintf("Section %s %s: %s", e.Section, e.Reason, e.Key)
}

// CursorKey identifies the last-seen pointer of a repository across restarts.
type CursorKey struct {
	ShortName string
	URL       string
	Branch    string
}

// CursorStore persists last-seen commits. Load returns "" when nothing is
// stored.
type CursorStore interface {
	Load(ctx context.Context, key CursorKey) (string, error)
	Save(ctx context.Context, key CursorKey, hash string) error
}

// NopCursors keeps last-seen pointers in memory only.
type NopCursors struct{}

func (NopCursors) Load(context.Context, CursorKey) (string, error) { return "", nil }

func (NopCursors) Save(context.Context, CursorKey, string) error { return nil }
