package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version  = "0.1.0"
	cfgFile  string
	backend  string
	logLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "smartassist",
		Short: "Smart assistant backed by interchangeable language models",
		Long: `smartassist routes chat and automation requests through a gateway that
can talk to OpenAI, Anthropic, DashScope (QianWen), Gemini or a local Ollama
server. Every model is rate limited per hour and rate-limited calls are
retried with backoff.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/smartassist/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "backend to use (openai_gpt35, openai_gpt4, claude, qianwen, gemini, ollama)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newModelsCmd())
	rootCmd.AddCommand(newLimitsCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("smartassist version %s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
