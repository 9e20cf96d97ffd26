package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/ammar0144/orgmap"
	"github.com/ammar0144/orgmap/internal/config"
	"github.com/rs/zerolog"
)

func main() {
	seed := flag.Bool("seed", false, "Insert the sample department and employees")
	drop := flag.Bool("drop", false, "Drop both tables before anything else")
	dbPath := flag.String("db", "", "sqlite path, overrides ORGMAP_DATABASE__PATH")
	flag.Parse()

	var overrides []config.Override
	if *dbPath != "" {
		overrides = append(overrides, config.WithSQLitePath(*dbPath))
	}

	cfg, err := config.Load(overrides...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.NewLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *drop, *seed, os.Stdout); err != nil {
		logger.Error().Err(err).Msg("orgmap failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, drop, seed bool, out io.Writer) error {
	store, err := orgmap.Open(cfg.DB(), cfg.Cache(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("close failed")
		}
	}()

	if drop {
		if err := store.DropTables(ctx); err != nil {
			return err
		}
		logger.Info().Msg("tables dropped")
	}

	if err := store.CreateTables(ctx); err != nil {
		return err
	}

	if seed {
		if err := seedSample(ctx, store); err != nil {
			return err
		}
		logger.Info().Msg("sample rows inserted")
	}

	return list(ctx, store, out)
}

func seedSample(ctx context.Context, store *orgmap.Store) error {
	payroll, err := store.Departments.Create(ctx, "Payroll", "Building A, 5th Floor")
	if err != nil {
		return err
	}
	if _, err := store.Employees.Create(ctx, "Raha", "Accountant", payroll.ID); err != nil {
		return err
	}
	if _, err := store.Employees.Create(ctx, "Tal", "Senior Accountant", payroll.ID); err != nil {
		return err
	}
	return nil
}

func list(ctx context.Context, store *orgmap.Store, out io.Writer) error {
	departments, err := store.Departments.GetAll(ctx)
	if err != nil {
		return err
	}
	employees, err := store.Employees.GetAll(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "DEPARTMENT\tNAME\tLOCATION")
	for _, d := range departments {
		fmt.Fprintf(w, "%d\t%s\t%s\n", d.ID, d.Name, d.Location)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "EMPLOYEE\tNAME\tJOB TITLE\tDEPARTMENT")
	for _, e := range employees {
		department := "-"
		if d, err := store.Employees.Department(ctx, e); err != nil {
			return err
		} else if d != nil {
			department = d.Name
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.ID, e.Name, e.JobTitle, department)
	}
	return w.Flush()
}
