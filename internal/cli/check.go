package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gomantics/gitwatch/config"
	"github.com/gomantics/gitwatch/domains/repos"
)

// CheckCmd returns the check command
func CheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [config file]",
		Short: "Validate settings and the repository configuration",
		Long: `Validate the GITWATCH_* settings and parse the repository configuration
file without cloning or fetching anything. The file defaults to
GITWATCH_CONFIG_FILE.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Watch.ConfigFile()
			if len(args) == 1 {
				path = args[0]
			}
			return check(cmd.OutOrStdout(), path)
		},
	}
}

func check(w io.Writer, path string) error {
	ok := color.New(color.FgGreen).Sprint("OK")
	fail := color.New(color.FgRed).Sprint("FAIL")

	if err := config.Validate(); err != nil {
		fmt.Fprintf(w, "%s settings: %v\n", fail, err)
		return err
	}
	fmt.Fprintf(w, "%s settings\n", ok)

	defs, err := repos.ParseFile(path)
	if err != nil {
		fmt.Fprintf(w, "%s %s: %v\n", fail, path, err)
		return err
	}
	fmt.Fprintf(w, "%s %s: %d %s\n", ok, path, len(defs), plural(len(defs), "repository", "repositories"))

	for _, d := range defs {
		fmt.Fprintf(w, "  %s (%s, branch: %s) -> %s\n",
			color.New(color.Bold).Sprint(d.ShortName),
			d.LongName,
			d.Branch,
			strings.Join(d.Channels, " "),
		)
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
