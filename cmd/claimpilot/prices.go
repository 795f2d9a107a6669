package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/clarivue/claimpilot/internal/cli"
	"github.com/clarivue/claimpilot/internal/config"
	"github.com/clarivue/claimpilot/internal/match"
	"github.com/clarivue/claimpilot/internal/model"
	"github.com/clarivue/claimpilot/internal/service"
	"github.com/clarivue/claimpilot/internal/storage"
)

func pricesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Manage reference price tables",
	}

	cmd.AddCommand(pricesImportCmd())
	cmd.AddCommand(pricesListCmd())
	cmd.AddCommand(pricesLookupCmd())

	return cmd
}

func pricesImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <csv-file>",
		Short: "Import a reference price table from CSV",
		Long: `Import procedure prices from a CSV file with "name,price" rows.

A header row is detected and skipped. Existing entries with the same name
under the same source are replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: runPricesImport,
	}

	cmd.Flags().String("source", model.SourceReference, "price source to import into")

	return cmd
}

func runPricesImport(cmd *cobra.Command, args []string) error {
	source, _ := cmd.Flags().GetString("source")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()
	if err := store.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	file, err := os.Open(config.ExpandPath(args[0]))
	if err != nil {
		return fmt.Errorf("failed to open CSV: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat CSV: %w", err)
	}

	bar := progressbar.NewOptions64(info.Size(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(fmt.Sprintf("Importing %s prices...", source)),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
	)

	reader := csv.NewReader(io.TeeReader(file, bar))
	reader.FieldsPerRecord = -1

	imported, skipped := 0, 0
	for line := 1; ; line++ {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("failed to read CSV line %d: %w", line, readErr)
		}
		if len(record) < 2 {
			skipped++
			continue
		}

		name := strings.TrimSpace(record[0])
		price, parseErr := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if name == "" || parseErr != nil || price <= 0 {
			// Header rows and malformed lines are skipped, not fatal.
			skipped++
			continue
		}

		saveErr := store.SavePriceEntry(cmd.Context(), &model.PriceRecord{
			Source: source,
			Name:   name,
			Price:  price,
			Origin: "import",
		})
		if saveErr != nil {
			return fmt.Errorf("failed to save %q: %w", name, saveErr)
		}
		imported++
	}
	_ = bar.Finish()

	slog.Info("Price import complete", "source", source, "imported", imported, "skipped", skipped)
	return nil
}

func pricesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a reference price table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			source, _ := cmd.Flags().GetString("source")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			records, err := store.ListPriceRecords(cmd.Context(), source)
			if err != nil {
				return err
			}
			fmt.Print(cli.RenderPriceRecords(source, records))
			return nil
		},
	}

	cmd.Flags().String("source", model.SourceReference, "price source to list")

	return cmd
}

func pricesLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <procedure name>",
		Short: "Resolve a procedure name against the reference tables",
		Long: `Run the fuzzy matcher over the configured price sources and print the
winning candidate. The AI-estimate fallback is not consulted; an unmatched
name reports as unresolved.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			sources := make([]service.PriceSource, 0, len(cfg.MatcherSources))
			for _, name := range cfg.MatcherSources {
				sources = append(sources, match.NewStorageSource(name, store))
			}
			matcher := match.New(match.Config{Threshold: cfg.MatcherThreshold}, sources, nil, slog.Default())

			candidate, err := matcher.ResolvePrice(cmd.Context(), query)
			if err != nil {
				fmt.Println(cli.WarningStyle.Render(
					fmt.Sprintf("No source cleared the %.2f threshold for %q.", cfg.MatcherThreshold, query)))
				return nil
			}
			fmt.Print(cli.RenderPriceCandidate(candidate))
			return nil
		},
	}
}
