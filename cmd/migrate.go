package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/neuralux/convoengine/internal/config"
	pgstore "github.com/neuralux/convoengine/internal/store/pg"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres session-store schema",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Fprintf(os.Stderr, "convod: %v\n", err)
				os.Exit(1)
			}
			dsn := cfg.Sessions.PostgresDSN
			if dsn == "" {
				fmt.Fprintln(os.Stderr, "convod: NLX_POSTGRES_DSN is not set")
				os.Exit(1)
			}
			if err := pgstore.Migrate(dsn); err != nil {
				fmt.Fprintf(os.Stderr, "convod: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("migrations applied")
		},
	}
}
