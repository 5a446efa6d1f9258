package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/models/enum"
	"gofalre.io/hendrix/stock"
)

var (
	adminCmd = &cobra.Command{
		Use:   "admin",
		Short: "Store administration (administrator accounts only)",
	}
	adminOrdersCmd = &cobra.Command{
		Use:   "orders",
		Short: "List every order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			orders, err := app.svc.ListAllOrders(cmd.Context())
			if err != nil {
				return err
			}
			printOrders(cmd.OutOrStdout(), orders)
			return nil
		},
	}
	adminStatusCmd = &cobra.Command{
		Use:   "status [order-id] [status]",
		Short: "Move an order to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			o, err := app.svc.UpdateOrderStatus(cmd.Context(), id, enum.OrderStatus(strings.ToUpper(args[1])))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pedido #%d: %s\n", o.ID, statusStyle(o.Status).Render(string(o.Status)))
			return nil
		},
	}
	adminDeleteCmd = &cobra.Command{
		Use:   "delete [order-id]",
		Short: "Delete an order awaiting payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err = app.svc.DeleteOrder(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pedido #%d eliminado\n", id)
			return nil
		},
	}
	adminUsersCmd = &cobra.Command{
		Use:   "users",
		Short: "List user accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := app.svc.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			printUsers(cmd.OutOrStdout(), users)
			return nil
		},
	}
	adminUserUpdateCmd = &cobra.Command{
		Use:   "user-update [user-id]",
		Short: "Change a user's role, state or password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			update := &models.AdminUserUpdate{
				Role:     enum.Role(strings.ToUpper(userRole)),
				Active:   userActive,
				Password: userPassword,
			}
			user, err := app.svc.UpdateUser(cmd.Context(), id, update)
			if err != nil {
				return err
			}
			printUsers(cmd.OutOrStdout(), []models.User{*user})
			return nil
		},
	}
	userRole     string
	userActive   bool
	userPassword string

	adminPriceCmd = &cobra.Command{
		Use:   "price [instrument-id] [price]",
		Short: "Set an instrument's price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			price, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid price %q", args[1])
			}
			instrument, err := app.svc.UpdatePrice(cmd.Context(), stock.UpdatePriceParams{InstrumentID: id, Price: price})
			if err != nil {
				return err
			}
			printInstruments(cmd.OutOrStdout(), []models.Instrument{*instrument})
			return nil
		},
	}
	adminRestockCmd = &cobra.Command{
		Use:   "restock [instrument-id] [quantity]",
		Short: "Add units to an instrument's stock",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			quantity, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			instrument, err := app.svc.Restock(cmd.Context(), stock.RestockParams{InstrumentID: id, Quantity: quantity})
			if err != nil {
				return err
			}
			printInstruments(cmd.OutOrStdout(), []models.Instrument{*instrument})
			return nil
		},
	}
	adminLowStockCmd = &cobra.Command{
		Use:   "low-stock",
		Short: "List instruments running out of stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			instruments, err := app.svc.LowStock(cmd.Context())
			if err != nil {
				return err
			}
			printInstruments(cmd.OutOrStdout(), instruments)
			return nil
		},
	}

	adminStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Count orders by status and total sales",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := app.svc.OrderStats(cmd.Context())
			if err != nil {
				return err
			}
			printOrderStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}

	adminCreateCmd = &cobra.Command{
		Use:   "instrument-create",
		Short: "Add an instrument to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := instrumentForm.params()
			if err != nil {
				return err
			}
			instrument, err := app.svc.CreateInstrument(cmd.Context(), params)
			if err != nil {
				return err
			}
			printInstrument(cmd.OutOrStdout(), instrument)
			return nil
		},
	}
	adminUpdateCmd = &cobra.Command{
		Use:   "instrument-update [instrument-id]",
		Short: "Replace an instrument's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			params, err := instrumentForm.params()
			if err != nil {
				return err
			}
			instrument, err := app.svc.UpdateInstrument(cmd.Context(), stock.UpdateInstrumentParams{InstrumentID: id, InstrumentParams: params})
			if err != nil {
				return err
			}
			printInstrument(cmd.OutOrStdout(), instrument)
			return nil
		},
	}
	adminRemoveCmd = &cobra.Command{
		Use:   "instrument-delete [instrument-id]",
		Short: "Remove an instrument that no order refers to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err = app.svc.DeleteInstrument(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Instrumento #%d eliminado\n", id)
			return nil
		},
	}
	instrumentForm instrumentFlags

	adminUploadCmd = &cobra.Command{
		Use:   "upload [image-file]",
		Short: "Upload an instrument picture and print its URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return err
			}

			upload, err := app.svc.UploadImage(cmd.Context(), stock.UploadImageParams{
				FileName: args[0],
				Size:     info.Size(),
				Content:  f,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), upload.URL)
			return nil
		},
	}
)

// instrumentFlags 建立與更新樂器共用的旗標
type instrumentFlags struct {
	name        string
	brand       string
	stock       int
	description string
	image       string
	categoryID  uint64
	price       string
}

func (f *instrumentFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "instrument name")
	cmd.Flags().StringVar(&f.brand, "brand", "", "brand")
	cmd.Flags().IntVar(&f.stock, "stock", 0, "units in stock")
	cmd.Flags().StringVar(&f.description, "description", "", "description")
	cmd.Flags().StringVar(&f.image, "image", "", "image URL, as printed by 'admin upload'")
	cmd.Flags().Uint64Var(&f.categoryID, "category", 0, "category id")
	cmd.Flags().StringVar(&f.price, "price", "", "current price")
}

func (f *instrumentFlags) params() (stock.InstrumentParams, error) {
	var price decimal.Decimal
	if f.price != "" {
		var err error
		if price, err = decimal.NewFromString(f.price); err != nil {
			return stock.InstrumentParams{}, fmt.Errorf("invalid price %q", f.price)
		}
	}
	return stock.InstrumentParams{
		Name:        f.name,
		Brand:       f.brand,
		Stock:       f.stock,
		Description: f.description,
		Image:       f.image,
		CategoryID:  f.categoryID,
		Price:       price,
	}, nil
}

func init() {
	adminUserUpdateCmd.Flags().StringVar(&userRole, "role", string(enum.RoleUser), "ADMIN or USER")
	adminUserUpdateCmd.Flags().BoolVar(&userActive, "active", true, "whether the account may sign in")
	adminUserUpdateCmd.Flags().StringVar(&userPassword, "password", "", "new password; empty keeps the current one")

	instrumentForm.bind(adminCreateCmd)
	instrumentForm.bind(adminUpdateCmd)

	adminCmd.AddCommand(adminOrdersCmd, adminStatusCmd, adminDeleteCmd, adminStatsCmd, adminUsersCmd, adminUserUpdateCmd,
		adminPriceCmd, adminRestockCmd, adminLowStockCmd,
		adminCreateCmd, adminUpdateCmd, adminRemoveCmd, adminUploadCmd)
}
