package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newAnalyzeCommand() *cobra.Command {
	var repoDir string
	cmd := &cobra.Command{
		Use:   "analyze <text-file>",
		Short: "Extract supplier invoice fields from text using the analysis endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			ctx := commandContext(cmd)
			a, err := openProject(ctx, repoDir)
			if err != nil {
				return err
			}
			defer a.Close()

			inv, err := a.Analyzer.Analyze(ctx, string(text), func(progress int) {
				fmt.Fprintf(os.Stderr, "analyzing... %d%%\n", progress)
			})
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(inv, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	repoFlag(cmd, &repoDir)
	return cmd
}
