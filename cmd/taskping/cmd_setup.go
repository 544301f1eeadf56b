package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/taskping/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("Taskping Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		// 1. Transcript root
		cfg.Watch.Root = prompt(scanner, "Transcript directory to watch", cfg.Watch.Root)

		// 2. Desktop notifications
		cfg.Notify.Desktop.Enabled = promptBool(scanner, "Show desktop notifications", cfg.Notify.Desktop.Enabled)

		// 3. Console notifications
		cfg.Notify.Console.Enabled = promptBool(scanner, "Print notifications to the console", cfg.Notify.Console.Enabled)

		// 4. Telegram bot token (optional)
		cfg.Notify.Telegram.Token = prompt(scanner, "Telegram bot token (optional)", cfg.Notify.Telegram.Token)

		// 5. Telegram chat ID, only worth asking once a token is set
		if cfg.Notify.Telegram.Token != "" {
			chatIDStr := prompt(scanner, "Telegram chat ID", strconv.FormatInt(cfg.Notify.Telegram.ChatID, 10))
			if id, err := strconv.ParseInt(chatIDStr, 10, 64); err == nil {
				cfg.Notify.Telegram.ChatID = id
			}
		}
		cfg.Notify.Telegram.Enabled = cfg.Notify.Telegram.Token != "" && cfg.Notify.Telegram.ChatID != 0

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}

// promptBool asks a yes/no question; anything starting with "y" counts as yes.
func promptBool(scanner *bufio.Scanner, label string, defaultVal bool) bool {
	def := "n"
	if defaultVal {
		def = "y"
	}
	answer := prompt(scanner, label+" (y/n)", def)
	return strings.HasPrefix(strings.ToLower(answer), "y")
}
