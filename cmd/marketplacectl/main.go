// Command marketplacectl runs maintenance jobs against the marketplace
// stores and mints service tokens.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matchbase/marketplace/internal/app"
	"github.com/matchbase/marketplace/internal/config"
	"github.com/matchbase/marketplace/pkg/logger"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "marketplacectl",
		Short:   "Maintenance jobs for the marketplace stores",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(os.Getenv("LOG_LEVEL"))
		},
	}
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(repairCmd())
	rootCmd.AddCommand(mintTokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp loads the configuration, connects the stores and runs fn.
func withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return fn(a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
