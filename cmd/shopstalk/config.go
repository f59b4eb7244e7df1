package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/IshaanNene/ShopStalk/internal/config"
)

var showSecrets bool

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if !showSecrets {
				redact(cfg)
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print credentials and connection strings unmasked")
	return cmd
}

// redact masks credentials and connection strings.
func redact(cfg *config.Config) {
	mask := func(s *string) {
		if *s != "" {
			*s = "********"
		}
	}
	mask(&cfg.OpenAI.APIKey)
	mask(&cfg.Ingest.DatabaseURL)
	mask(&cfg.Chat.RedisURL)
	mask(&cfg.Storage.MongoURI)
	for i := range cfg.Proxy.URLs {
		mask(&cfg.Proxy.URLs[i])
	}
}
