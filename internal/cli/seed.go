package cli

import (
	"github.com/spf13/cobra"
)

// NewSeedCmd creates the demo learners in the configured repository.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo learner profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			s, err := buildStack(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.orch.SeedDemoUsers(cmd.Context())
			if err != nil {
				return err
			}
			log.Info("demo users seeded", "created", n)
			return nil
		},
	}
}
