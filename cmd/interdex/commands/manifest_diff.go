package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"
)

// NewManifestDiffCommand creates the manifest-diff command: a line-level
// diff between two container manifests, for spotting container-assignment
// churn between two pack runs.
func NewManifestDiffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest-diff <old-manifest> <new-manifest>",
		Short: "Diff two container manifests line by line",
		Long: `Diff prints the line-level difference between two interdex manifests,
highlighting containers whose canary, ordinal, or flags changed between
runs.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			return runManifestDiff(args[0], args[1])
		},
	}

	return cmd
}

func runManifestDiff(oldPath, newPath string) error {
	oldRaw, err := os.ReadFile(oldPath)
	if err != nil {
		return fmt.Errorf("read old manifest: %w", err)
	}

	newRaw, err := os.ReadFile(newPath)
	if err != nil {
		return fmt.Errorf("read new manifest: %w", err)
	}

	dmp := diffmatchpatch.New()

	oldLines, newLines, lineArray := dmp.DiffLinesToChars(string(oldRaw), string(newRaw))
	diffs := dmp.DiffMain(oldLines, newLines, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)
	diffs = dmp.DiffCleanupSemantic(diffs)

	printManifestDiff(diffs)

	return nil
}

func printManifestDiff(diffs []diffmatchpatch.Diff) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added.Print(prefixLines("+ ", d.Text))
		case diffmatchpatch.DiffDelete:
			removed.Print(prefixLines("- ", d.Text))
		case diffmatchpatch.DiffEqual:
			fmt.Print(prefixLines("  ", d.Text))
		}
	}
}

func prefixLines(prefix, text string) string {
	out := prefix

	for i, r := range text {
		out += string(r)
		if r == '\n' && i != len(text)-1 {
			out += prefix
		}
	}

	return out
}
