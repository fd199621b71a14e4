package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Println("[default]")
		fmt.Printf("  token      = %s\n", maskToken(cfg.Default.Token))
		fmt.Printf("  base_url   = %s\n", orDefault(cfg.Default.BaseURL, "(default)"))
		fmt.Printf("  user_id    = %s\n", orDefault(cfg.Default.UserID, "(unset)"))
		fmt.Printf("  cache_path = %s\n", orDefault(cfg.Default.CachePath, "(default)"))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value using dot notation.\n\nExamples:\n  loqui config set default.base_url https://api.loqui.chat\n  loqui config set default.user_id usr-1234",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := setConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := saveConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("Set %s\n", args[0])
		return nil
	},
}

func maskToken(token string) string {
	if token == "" {
		return "(unset)"
	}
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
