package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/atlas/internal/profile"
	"github.com/hrygo/atlas/internal/version"
	"github.com/hrygo/atlas/server"
	"github.com/hrygo/atlas/store"
	"github.com/hrygo/atlas/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: `A chat service for OpenAI assistants with a pass-through Assistants API proxy.`,
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile, err := newProfile()
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
			os.Exit(1)
		}
		server.SetupLogger(instanceProfile)

		ctx, cancel := context.WithCancel(context.Background())
		storeInstance, err := openStore(ctx, instanceProfile)
		if err != nil {
			cancel()
			slog.Error("failed to open store", "error", err)
			return
		}

		s, err := server.NewServer(ctx, instanceProfile, storeInstance)
		if err != nil {
			cancel()
			slog.Error("failed to create server", "error", err)
			return
		}

		c := make(chan os.Signal, 1)
		// Trigger graceful shutdown on SIGINT or SIGTERM.
		// The default signal sent by the `kill` command is SIGTERM,
		// which is taken as the graceful shutdown signal for many systems, eg., Kubernetes, Gunicorn.
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)

		if err := s.Start(ctx); err != nil {
			cancel()
			slog.Error("failed to start server", "error", err)
			return
		}

		printGreetings(instanceProfile, s.Addr())

		go func() {
			<-c
			s.Shutdown(ctx)
			cancel()
		}()

		// Wait for CTRL-C.
		<-ctx.Done()
	},
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 3001)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 3001, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (sqlite or postgres)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")
	rootCmd.PersistentFlags().String("user-name", "", "name greeted by the welcome messages")

	for _, name := range []string{"mode", "addr", "port", "data", "driver", "dsn", "user-name"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("atlas")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(apiKeyCmd)
}

// newProfile builds the profile from flags and ATLAS_* environment variables.
func newProfile() (*profile.Profile, error) {
	p := &profile.Profile{
		Mode:   viper.GetString("mode"),
		Addr:   viper.GetString("addr"),
		Port:   viper.GetInt("port"),
		Data:   viper.GetString("data"),
		Driver: viper.GetString("driver"),
		DSN:    viper.GetString("dsn"),
	}
	p.FromEnv()
	if userName := viper.GetString("user-name"); userName != "" {
		p.UserName = userName
	}
	if p.Data == "" && p.Mode != "prod" {
		p.Data = "."
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.Version = version.GetCurrentVersion(p.Mode)
	return p, nil
}

func openStore(ctx context.Context, p *profile.Profile) (*store.Store, error) {
	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, err
	}
	storeInstance := store.New(dbDriver, p)
	if err := storeInstance.Migrate(ctx); err != nil {
		_ = storeInstance.Close()
		return nil, err
	}
	return storeInstance, nil
}

func printGreetings(p *profile.Profile, addr string) {
	if p.IsDev() {
		println("Development mode is enabled")
		println("DSN: ", p.DSN)
	}
	fmt.Printf(`---
Server profile
version: %s
data: %s
addr: %s
mode: %s
driver: %s
---
`, p.Version, p.Data, addr, p.Mode, p.Driver)

	fmt.Printf("Atlas is running at http://%s\n", addr)
	fmt.Println("---")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
