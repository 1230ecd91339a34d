package cli

import (
	"github.com/spf13/cobra"
)

// NewIngestCmd rebuilds the retrieval index from the docs directory and
// saves a fresh snapshot.
func NewIngestCmd(configPath *string) *cobra.Command {
	var docsDir string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Rebuild the retrieval index from the docs directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			if docsDir != "" {
				cfg.Retrieval.DocsDir = docsDir
			}

			s, err := buildStack(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer s.Close()

			stats, err := s.coord.Ingest(cmd.Context())
			if err != nil {
				return err
			}
			log.Info("ingestion complete", "documents", stats.Documents, "chunks", stats.Chunks, "topics", s.coord.Topics())
			return nil
		},
	}
	cmd.Flags().StringVar(&docsDir, "docs", "", "docs directory (overrides config)")
	return cmd
}
