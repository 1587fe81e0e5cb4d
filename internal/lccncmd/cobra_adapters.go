// Package lccncmd holds the lccn-finder subcommands.
package lccncmd

import (
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/lccn-finder/internal/config"
	"github.com/lehigh-university-libraries/lccn-finder/internal/models"
)

// loadConfig reads the --config file and environment, then applies the flags
// the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.InputFile, _ = flags.GetString("input")
	}
	if flags.Changed("no-verify") {
		noVerify, _ := flags.GetBool("no-verify")
		cfg.Verify = !noVerify
	}
	if flags.Changed("journal") {
		cfg.JournalDB, _ = flags.GetString("journal")
	}
	if flags.Changed("report-dir") {
		cfg.ReportsDir, _ = flags.GetString("report-dir")
	}
	if flags.Changed("provider") {
		cfg.MetadataProvider, _ = flags.GetString("provider")
	}
	if flags.Changed("model") {
		cfg.MetadataModel, _ = flags.GetString("model")
	}
	return cfg, nil
}

// NewEnrichCmd creates the enrich command
func NewEnrichCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Add LCCNs to a table of scanned books",
		Long: `Looks up the Library of Congress Control Number of every book in a CSV or
Parquet table and writes LCCN, Link and Verified columns back to it.

Books missing a title or publication date are first completed from Open
Library (and optionally an LLM). Each book is then searched on loc.gov by
title and scanned name; candidates are scored and, unless disabled, verified
by finding the book's ISBN on the LCCN permalink page.

The table is saved after every book, so an interrupted run picks up where it
stopped. Books that already have an LCCN (or N/A) are skipped.`,
		Example: `  # Enrich the table named by INPUT_FILE in .env
  lccn-finder enrich

  # Enrich a specific table without ISBN verification
  lccn-finder enrich --input books.csv --no-verify

  # Fill missing titles with a local model before searching
  lccn-finder enrich --input books.parquet --provider ollama`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return executeEnrich(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().String("config", "", "Path to YAML config file")
	cmd.Flags().String("input", "", "Path to the CSV or Parquet book table (default $INPUT_FILE)")
	cmd.Flags().Bool("no-verify", false, "Skip ISBN verification on LCCN permalink pages")
	cmd.Flags().String("journal", "", "Path to the resolution journal database")
	cmd.Flags().String("report-dir", "", "Directory for run reports")
	cmd.Flags().String("provider", "", "LLM metadata fallback (none, ollama, openai, or gemini)")
	cmd.Flags().String("model", "", "Model name (defaults to provider's default)")

	return cmd
}

// NewLookupCmd creates the lookup command
func NewLookupCmd() *cobra.Command {
	book := &models.Book{}

	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Resolve the LCCN of a single book",
		Long: `Resolves one book without a table and prints every search tried along with
the adopted LCCN. Missing title and date are looked up by ISBN first.`,
		Example: `  # Look up by ISBN alone
  lccn-finder lookup --isbn 9780385504201

  # Give the title and author to skip the metadata lookup
  lccn-finder lookup --isbn 9780385504201 --title "The Da Vinci code" --author "Dan Brown" --published 2003`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return executeLookup(cmd.Context(), cfg, book, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&book.ISBN, "isbn", "", "ISBN of the book")
	cmd.Flags().StringVar(&book.Title, "title", "", "Title of the book")
	cmd.Flags().StringVar(&book.Name, "name", "", "Scanned display name of the book")
	cmd.Flags().StringVar(&book.Author, "author", "", "Author as \"First Last\" or \"Last, First\"")
	cmd.Flags().StringVar(&book.Published, "published", "", "Publication date or year")
	cmd.Flags().String("config", "", "Path to YAML config file")
	cmd.Flags().Bool("no-verify", false, "Skip ISBN verification on LCCN permalink pages")
	cmd.Flags().String("provider", "", "LLM metadata fallback (none, ollama, openai, or gemini)")
	cmd.Flags().String("model", "", "Model name (defaults to provider's default)")

	return cmd
}

// NewHistoryCmd creates the history command
func NewHistoryCmd() *cobra.Command {
	var isbn string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past resolutions of an ISBN",
		Long:  `Lists every resolution of an ISBN recorded in the journal, newest first.`,
		Example: `  lccn-finder history --isbn 9780385504201
  lccn-finder history --isbn 9780385504201 --journal /data/lccn-journal.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return executeHistory(cmd.Context(), cfg.JournalDB, isbn, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&isbn, "isbn", "", "ISBN to look up")
	cmd.Flags().String("config", "", "Path to YAML config file")
	cmd.Flags().String("journal", "", "Path to the resolution journal database")
	_ = cmd.MarkFlagRequired("isbn")

	return cmd
}
