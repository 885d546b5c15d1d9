package repos

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gomantics/gitwatch/libs/gitrepo"
	"go.uber.org/zap"
)

const (
	keyShortName     = "short name"
	keyURL           = "url"
	keyBranch        = "branch"
	keyChannel       = "channel"
	keyChannels      = "channels"
	keyCommitLink    = "commit link"
	keyCommitMessage = "commit message"
	keyCommitReply   = "commit reply"
)

var knownKeys = map[string]bool{
	keyShortName:     true,
	keyURL:           true,
	keyBranch:        true,
	keyChannel:       true,
	keyChannels:      true,
	keyCommitLink:    true,
	keyCommitMessage: true,
	keyCommitReply:   true,
}

// ParseFile reads a repository configuration file.
func ParseFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read repository config: %w", err)
	}
	return Parse(data)
}

// Parse decodes repository definitions, one TOML table per repository keyed
// by its long name. Tables keep their file order.
func Parse(data []byte) ([]Definition, error) {
	var raw map[string]any
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse repository config: %w", err)
	}

	var defs []Definition
	seen := make(map[string]string)

	for _, key := range md.Keys() {
		if len(key) != 1 {
			continue
		}
		section := key[0]

		values, ok := raw[section].(map[string]any)
		if !ok {
			return nil, &ConfigError{Section: section, Reason: "is not a table"}
		}

		def, err := parseSection(section, values)
		if err != nil {
			return nil, err
		}

		if other, dup := seen[def.ShortName]; dup {
			return nil, &ConfigError{
				Section: section,
				Key:     def.ShortName,
				Reason:  fmt.Sprintf("reuses the short name of section %s", other),
			}
		}
		seen[def.ShortName] = section

		defs = append(defs, def)
	}

	return defs, nil
}

func parseSection(section string, values map[string]any) (Definition, error) {
	for key := range values {
		if !knownKeys[key] {
			return Definition{}, &ConfigError{Section: section, Key: key, Reason: "contains unrecognized value"}
		}
	}

	str := func(key string) (string, error) {
		v, ok := values[key]
		if !ok {
			return "", nil
		}
		s, ok := v.(string)
		if !ok {
			return "", &ConfigError{Section: section, Key: key, Reason: "has a non-string value"}
		}
		return s, nil
	}

	def := Definition{
		LongName:      section,
		Branch:        DefaultBranch,
		CommitMessage: DefaultCommitMessage,
	}

	fields := []struct {
		key string
		dst *string
	}{
		{keyShortName, &def.ShortName},
		{keyURL, &def.URL},
		{keyBranch, &def.Branch},
		{keyCommitLink, &def.CommitLink},
		{keyCommitMessage, &def.CommitMessage},
		{keyCommitReply, &def.CommitReply},
	}
	for _, f := range fields {
		if _, ok := values[f.key]; !ok {
			continue
		}
		s, err := str(f.key)
		if err != nil {
			return Definition{}, err
		}
		*f.dst = s
	}

	for _, key := range []string{keyChannel, keyChannels} {
		channels, err := str(key)
		if err != nil {
			return Definition{}, err
		}
		def.Channels = append(def.Channels, strings.Fields(channels)...)
	}

	switch {
	case strings.TrimSpace(def.ShortName) == "":
		return Definition{}, &ConfigError{Section: section, Key: keyShortName, Reason: "missing required value"}
	case strings.ContainsAny(def.ShortName, " \t/\\"):
		return Definition{}, &ConfigError{Section: section, Key: keyShortName, Reason: "has an invalid value"}
	case strings.TrimSpace(def.URL) == "":
		return Definition{}, &ConfigError{Section: section, Key: keyURL, Reason: "missing required value"}
	case len(def.Channels) == 0:
		return Definition{}, &ConfigError{Section: section, Key: keyChannel, Reason: "missing required value"}
	case strings.TrimSpace(def.Branch) == "":
		def.Branch = DefaultBranch
	}

	return def, nil
}

// Load builds repositories for every definition, cloning mirrors that do not
// exist yet. Any failure aborts the whole load.
func Load(ctx context.Context, l *zap.Logger, backend gitrepo.Backend, cursors CursorStore, rootDir string, defs []Definition) ([]*Repository, error) {
	repos := make([]*Repository, 0, len(defs))
	for _, def := range defs {
		r, err := New(ctx, l, backend, cursors, rootDir, def)
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, nil
}

// LoadFile parses the configuration file at path and loads every repository
// it defines.
func LoadFile(ctx context.Context, l *zap.Logger, backend gitrepo.Backend, cursors CursorStore, rootDir, path string) ([]*Repository, error) {
	defs, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Load(ctx, l, backend, cursors, rootDir, defs)
}
