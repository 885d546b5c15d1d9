package repos

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomantics/gitwatch/libs/gitrepo"
	"github.com/gomantics/gitwatch/libs/gitrepo/gitrepotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const multiChannel = `
["Test Repository 1"]
"short name" = "test1"
url = "https://example.com/test1.git"
channel = "#test"

["Test Repository 2"]
"short name" = "test2"
url = "https://example.com/test2.git"
branch = "feature"
channels = "#test #somewhere"
"commit link" = "https://example.com/test2/commit/%C"

["Test Repository 3"]
"short name" = "test3"
url = "https://example.com/test3.git"
channel = "#other"
"commit message" = "%n: %m"
"commit reply" = "%c %m"
`

func TestParse(t *testing.T) {
	defs, err := Parse([]byte(multiChannel))
	require.NoError(t, err)
	require.Len(t, defs, 3)

	assert.Equal(t, Definition{
		LongName:      "Test Repository 1",
		ShortName:     "test1",
		URL:           "https://example.com/test1.git",
		Branch:        "master",
		Channels:      []string{"#test"},
		CommitMessage: DefaultCommitMessage,
	}, defs[0])

	assert.Equal(t, "test2", defs[1].ShortName)
	assert.Equal(t, "feature", defs[1].Branch)
	assert.Equal(t, []string{"#test", "#somewhere"}, defs[1].Channels)
	assert.Equal(t, "https://example.com/test2/commit/%C", defs[1].CommitLink)

	assert.Equal(t, "%n: %m", defs[2].CommitMessage)
	assert.Equal(t, "%c %m", defs[2].CommitReply)
}

func TestParseEmpty(t *testing.T) {
	defs, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		key    string
		reason string
	}{
		{
			name:   "missing short name",
			input:  "[R]\nurl = \"u\"\nchannel = \"#c\"\n",
			key:    "short name",
			reason: "missing required value",
		},
		{
			name:   "missing url",
			input:  "[R]\n\"short name\" = \"r\"\nchannel = \"#c\"\n",
			key:    "url",
			reason: "missing required value",
		},
		{
			name:   "missing channel",
			input:  "[R]\n\"short name\" = \"r\"\nurl = \"u\"\n",
			key:    "channel",
			reason: "missing required value",
		},
		{
			name:   "unknown key",
			input:  "[R]\n\"short name\" = \"r\"\nurl = \"u\"\nchannel = \"#c\"\ncolour = \"red\"\n",
			key:    "colour",
			reason: "contains unrecognized value",
		},
		{
			name:   "non-string value",
			input:  "[R]\n\"short name\" = \"r\"\nurl = \"u\"\nchannel = 5\n",
			key:    "channel",
			reason: "has a non-string value",
		},
		{
			name:   "duplicate short name",
			input:  "[A]\n\"short name\" = \"r\"\nurl = \"u\"\nchannel = \"#c\"\n[B]\n\"short name\" = \"r\"\nurl = \"v\"\nchannel = \"#c\"\n",
			key:    "r",
			reason: "reuses the short name of section A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.key, cfgErr.Key)
			assert.Equal(t, tt.reason, cfgErr.Reason)
		})
	}
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{Section: "Test Repository 1", Key: "url", Reason: "missing required value"}
	assert.Equal(t, "Section Test Repository 1 missing required value: url", err.Error())
}

func TestParseRejectsTopLevelValue(t *testing.T) {
	_, err := Parse([]byte("name = \"x\"\n"))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "name", cfgErr.Section)
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	backend := gitrepotest.NewBackend()
	for _, name := range []string{"test1", "test2", "test3"} {
		ref := "origin/master"
		if name == "test2" {
			ref = "origin/feature"
		}
		m := gitrepotest.NewMirror(ref)
		m.Push(gitrepo.Commit{AuthorName: "nstark", Message: "Initial " + name})
		backend.Add("https://example.com/"+name+".git", m)
	}

	defs, err := Parse([]byte(multiChannel))
	require.NoError(t, err)

	root := filepath.Join(t.TempDir(), "mirrors")
	repos, err := Load(context.Background(), zap.NewNop(), backend, NopCursors{}, root, defs)
	require.NoError(t, err)
	require.Len(t, repos, 3)

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.Equal(t, filepath.Join(root, "test2"), repos[1].Path)
	assert.Equal(t, "origin/feature", repos[1].Branch)
	assert.Equal(t, "feature", repos[1].BranchName())
	assert.Equal(t, []string{
		filepath.Join(root, "test1"),
		filepath.Join(root, "test2"),
		filepath.Join(root, "test3"),
	}, backend.Opened())
}

func TestLoadFailsOnCloneError(t *testing.T) {
	defs, err := Parse([]byte(multiChannel))
	require.NoError(t, err)

	_, err = Load(context.Background(), zap.NewNop(), gitrepotest.NewBackend(), NopCursors{}, t.TempDir(), defs)
	assert.Error(t, err)
}
