package main

import (
	"github.com/spf13/cobra"
)

var (
	catalogCmd = &cobra.Command{
		Use:   "catalog",
		Short: "Browse categories and instruments",
	}
	categoriesCmd = &cobra.Command{
		Use:   "categories",
		Short: "List instrument categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			categories, err := app.svc.ListCategories(cmd.Context())
			if err != nil {
				return err
			}
			printCategories(cmd.OutOrStdout(), categories)
			return nil
		},
	}
	listInstrumentsCmd = &cobra.Command{
		Use:   "list",
		Short: "List instruments, optionally filtered by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			instruments, err := app.svc.ListInstruments(cmd.Context(), categoryFilter)
			if err != nil {
				return err
			}
			printInstruments(cmd.OutOrStdout(), instruments)
			return nil
		},
	}
	categoryFilter uint64

	showInstrumentCmd = &cobra.Command{
		Use:   "show [instrument-id]",
		Short: "Show one instrument with its current stock and price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			instrument, err := app.svc.GetInstrument(cmd.Context(), id)
			if err != nil {
				return err
			}
			printInstrument(cmd.OutOrStdout(), instrument)
			return nil
		},
	}
)

func init() {
	listInstrumentsCmd.Flags().Uint64Var(&categoryFilter, "category", 0, "category id")
	catalogCmd.AddCommand(categoriesCmd, listInstrumentsCmd, showInstrumentCmd)
}
