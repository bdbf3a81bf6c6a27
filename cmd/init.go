package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/nae/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize nae configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose an inference provider and quality tier, and writes a .nae.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.RunWizard(cfgFile)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %s (provider=%s, model=%s)\n", cfgFile, cfg.Provider, cfg.Model)
		if env := config.APIKeyEnvVar(cfg.Provider); env != "" {
			fmt.Printf("Set %s before running an analysis.\n", env)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
