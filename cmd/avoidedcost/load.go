package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bher20/avoidedcost/internal/ingest"
	"github.com/bher20/avoidedcost/internal/migrate"
	"github.com/bher20/avoidedcost/internal/storage"
)

func kindNames() string {
	names := make([]string, len(ingest.Kinds))
	for i, k := range ingest.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func (a *app) loadCmd() *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "load KIND FILE...",
		Short: "Load reference data from CSV files",
		Long:  "Loads CSV files into storage. KIND is one of: " + kindNames() + ".",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kind := ingest.Kind(args[0])
			table, ok := kindTable(kind)
			if !ok {
				return fmt.Errorf("unknown kind %q, want one of %s", args[0], kindNames())
			}

			st, err := a.openStorage(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if reset {
				if err := st.ResetTable(ctx, table); err != nil {
					return err
				}
				slog.Info("table reset", "table", table)
			}
			total := 0
			for _, path := range args[1:] {
				n, err := ingest.LoadFile(ctx, st, kind, path)
				total += n
				if err != nil {
					return err
				}
			}
			slog.Info("load done", "kind", kind, "files", len(args)-1, "rows", total)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "empty the target table first")
	return cmd
}

func kindTable(k ingest.Kind) (string, bool) {
	switch k {
	case ingest.KindElecAvoidedCosts:
		return storage.TableElecAvCosts, true
	case ingest.KindGasAvoidedCosts:
		return storage.TableGasAvCosts, true
	case ingest.KindLoadShapes, ingest.KindMeteredShapes:
		return storage.TableElecLoadShape, true
	case ingest.KindProjects:
		return storage.TableProjectInfo, true
	}
	return "", false
}

func (a *app) resetCmd() *cobra.Command {
	var tables []string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every row of the given tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(tables) == 0 {
				return fmt.Errorf("--table is required (%s)", strings.Join(storage.Tables, ", "))
			}
			ctx := cmd.Context()
			st, err := a.openStorage(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			for _, t := range tables {
				if err := st.ResetTable(ctx, t); err != nil {
					return err
				}
				slog.Info("table reset", "table", t)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&tables, "table", nil, "table to reset, repeatable: "+strings.Join(storage.Tables, ", "))
	return cmd
}

func (a *app) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQL schema",
	}
	step := func(use, short string, fn func(*cobra.Command) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if a.cfg.DBDriver == "memory" {
					return fmt.Errorf("the memory driver has no schema")
				}
				return fn(cmd)
			},
		}
	}
	cmd.AddCommand(
		step("up", "Apply all pending migrations", func(cmd *cobra.Command) error {
			return migrate.Up(cmd.Context(), a.cfg.DBDriver, a.cfg.DBDSN)
		}),
		step("down", "Roll back the latest migration", func(cmd *cobra.Command) error {
			return migrate.Down(cmd.Context(), a.cfg.DBDriver, a.cfg.DBDSN)
		}),
		step("status", "Show applied migrations", func(cmd *cobra.Command) error {
			return migrate.Status(cmd.Context(), a.cfg.DBDriver, a.cfg.DBDSN)
		}),
	)
	return cmd
}
