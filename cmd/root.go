package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/lccn-finder/internal/lccncmd"
)

func NewRootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "lccn-finder",
		Short: "Find Library of Congress Control Numbers for scanned books",
		Long: `lccn-finder resolves the Library of Congress Control Number (LCCN) of books
by searching loc.gov by title and scanned name, scoring each result against
the book's title, author and publication year, and verifying the best
candidates by finding the book's ISBN on their LCCN permalink page.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			if !cmd.Flags().Changed("log-level") {
				if env := os.Getenv("LOG_LEVEL"); env != "" {
					logLevel = env
				}
			}
			level, err := parseLevel(logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(newHandler(level)))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Add subcommands
	cmd.AddCommand(lccncmd.NewEnrichCmd())
	cmd.AddCommand(lccncmd.NewLookupCmd())
	cmd.AddCommand(lccncmd.NewHistoryCmd())

	return cmd
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// newHandler logs human readable text on a terminal and JSON otherwise.
func newHandler(level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	fd := os.Stderr.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.NewJSONHandler(os.Stderr, opts)
}
