package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gofalre.io/hendrix/models"
)

var (
	v   = viper.New()
	app *application

	rootCmd = &cobra.Command{
		Use:   "hendrix",
		Short: "Musical Hendrix storefront client",
		Long: `hendrix browses the Musical Hendrix catalog, keeps a cart, places
orders and follows their payment until the store confirms it.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  bootstrap,
		PersistentPostRunE: teardown,
	}
	configFile string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "path to a YAML config file")
	flags.String("api-url", "", "storefront API base URL")
	flags.String("storage", "", "storage driver: badger, redis, postgres or memory")
	flags.String("log-level", "", "log level")
	flags.String("nats-url", "", "NATS server for payment events; empty disables the feed")

	_ = v.BindPFlag("api.base_url", flags.Lookup("api-url"))
	_ = v.BindPFlag("storage.driver", flags.Lookup("storage"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("nats.url", flags.Lookup("nats-url"))

	rootCmd.AddCommand(loginCmd, logoutCmd, registerCmd, whoamiCmd, forgotPasswordCmd, resetPasswordCmd)
	rootCmd.AddCommand(catalogCmd, cartCmd, orderCmd, payCmd, adminCmd)
}

func bootstrap(cmd *cobra.Command, _ []string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	var err error
	app, err = newApplication(cmd.Context(), v)
	return err
}

func teardown(*cobra.Command, []string) error {
	if app == nil {
		return nil
	}
	return app.Close()
}

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	if app != nil {
		_ = app.Close()
	}
	if err == nil {
		return
	}

	if denial, ok := models.AsDenial(err); ok {
		fmt.Fprintln(os.Stderr, warnStyle.Render(denial.Message))
	} else {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
	}
	if errors.Is(err, context.Canceled) {
		os.Exit(130)
	}
	os.Exit(1)
}
