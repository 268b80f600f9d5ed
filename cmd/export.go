package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drai-ai/drai/internal/report"
)

func newExportCmd() *cobra.Command {
	var outDir string
	var sessionPrefix string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a consultation as a PDF report",
		Example: `  drai export
  drai export --session 3fa8 --out ~/Documents`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(sessionPrefix, outDir)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default: export_dir from config, else cwd)")
	cmd.Flags().StringVarP(&sessionPrefix, "session", "s", "", "session id (default: active session)")
	return cmd
}

func runExport(sessionPrefix, outDir string) error {
	cfg := initConfig()
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if outDir == "" {
		outDir = exportDir(cfg)
	}

	sess, err := st.ActiveSession()
	if err != nil {
		return err
	}
	if sessionPrefix != "" {
		id, err := matchSession(st, sessionPrefix)
		if err != nil {
			return err
		}
		sess, err = st.Load(id)
		if err != nil {
			return err
		}
	}

	res, err := report.NewExporter().Export(context.Background(), sess, outDir)
	if err != nil {
		return err
	}
	fmt.Printf("exported %d messages to %s (%d pages)\n", res.Messages, res.Path, res.Pages)
	return nil
}
