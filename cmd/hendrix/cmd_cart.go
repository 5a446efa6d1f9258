package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	cartCmd = &cobra.Command{
		Use:   "cart",
		Short: "Show and change the cart",
		Args:  cobra.NoArgs,
		RunE:  runCartShow,
	}
	cartShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show the cart and its totals",
		Args:  cobra.NoArgs,
		RunE:  runCartShow,
	}
	cartAddCmd = &cobra.Command{
		Use:   "add [instrument-id] [quantity]",
		Short: "Add an instrument to the cart",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runCartAdd,
	}
	cartUpdateCmd = &cobra.Command{
		Use:   "update [instrument-id] [quantity]",
		Short: "Set the quantity of a cart line; 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE:  runCartUpdate,
	}
	cartRemoveCmd = &cobra.Command{
		Use:   "remove [instrument-id]",
		Short: "Remove a line from the cart",
		Args:  cobra.ExactArgs(1),
		RunE:  runCartRemove,
	}
	cartToggleCmd = &cobra.Command{
		Use:   "toggle",
		Short: "Show or hide the cart panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.svc.ToggleCart(); err != nil {
				return err
			}
			if app.svc.Cart().Visible {
				fmt.Fprintln(cmd.OutOrStdout(), "Carrito visible")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Carrito oculto")
			}
			return nil
		},
	}
	cartClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE:  runCartClear,
	}
)

func init() {
	cartCmd.AddCommand(cartShowCmd, cartAddCmd, cartUpdateCmd, cartRemoveCmd, cartToggleCmd, cartClearCmd)
}

func runCartShow(cmd *cobra.Command, _ []string) error {
	printCart(cmd.OutOrStdout(), app.svc.Cart())
	app.svc.DismissCartMessage()
	return nil
}

func runCartAdd(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	quantity := 1
	if len(args) == 2 {
		if quantity, err = parseQuantity(args[1]); err != nil {
			return err
		}
	}

	if err = app.svc.AddToCart(cmd.Context(), id, quantity); err != nil {
		return err
	}
	printCart(cmd.OutOrStdout(), app.svc.Cart())
	return nil
}

func runCartUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	quantity, err := parseQuantity(args[1])
	if err != nil {
		return err
	}

	if err = app.svc.UpdateCartItem(cmd.Context(), id, quantity); err != nil {
		return err
	}
	printCart(cmd.OutOrStdout(), app.svc.Cart())
	return nil
}

func runCartRemove(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err = app.svc.RemoveFromCart(cmd.Context(), id); err != nil {
		return err
	}
	printCart(cmd.OutOrStdout(), app.svc.Cart())
	return nil
}

func runCartClear(cmd *cobra.Command, _ []string) error {
	if err := app.svc.ClearCart(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Carrito vaciado")
	return nil
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseQuantity(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q", s)
	}
	return n, nil
}
