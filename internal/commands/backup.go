package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBackupCommand() *cobra.Command {
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up and restore business records",
	}
	backupCmd.AddCommand(newBackupRunCommand(), newBackupListCommand(), newBackupRestoreCommand())
	return backupCmd
}

func newBackupRunCommand() *cobra.Command {
	var repoDir string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Write a backup now and prune old ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := openProject(ctx, repoDir)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Backup.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Backup written to %s (%d documents)\n", res.Path, res.Documents)
			for _, p := range res.Pruned {
				fmt.Printf("Pruned %s\n", p)
			}
			return nil
		},
	}
	repoFlag(cmd, &repoDir)
	return cmd
}

func newBackupListCommand() *cobra.Command {
	var repoDir string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List backup files, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openProject(commandContext(cmd), repoDir)
			if err != nil {
				return err
			}
			defer a.Close()
			files, err := a.Backup.List()
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Println(f)
			}
			return nil
		},
	}
	repoFlag(cmd, &repoDir)
	return cmd
}

func newBackupRestoreCommand() *cobra.Command {
	var repoDir string
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Replace business records with the contents of a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := openProject(ctx, repoDir)
			if err != nil {
				return err
			}
			defer a.Close()
			file, err := a.Backup.Restore(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Restored %d collections from backup of %s\n", len(file.Collections), file.CreatedAt.Format("2006-01-02 15:04"))
			return nil
		},
	}
	repoFlag(cmd, &repoDir)
	return cmd
}
