package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init <token>",
	Short: "Initialize the CLI with an access token",
	Long:  "Store your Loqui access token in ~/.loqui/config.toml.\nAll other commands use this token to authenticate.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Default.Token = args[0]
		if err := saveConfig(cfg); err != nil {
			return err
		}

		path, _ := configPath()
		fmt.Printf("Token saved to %s\n", path)
		fmt.Println("Run 'loqui contacts' to verify the token works.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
