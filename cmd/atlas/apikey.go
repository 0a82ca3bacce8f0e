package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hrygo/atlas/internal/profile"
	"github.com/hrygo/atlas/store"
)

var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage the stored OpenAI API key",
}

var apiKeySetCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Validate and store an OpenAI API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, _ *profile.Profile, st *store.Store) error {
			if err := st.SetOpenAIAPIKey(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key saved: %s\n", store.MaskAPIKey(args[0]))
			return nil
		})
	},
}

var apiKeyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the configured API key, masked",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(func(ctx context.Context, p *profile.Profile, st *store.Store) error {
			if p.HasAPIKey() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (environment)\n", store.MaskAPIKey(p.OpenAIAPIKey))
				return nil
			}
			key, err := st.GetOpenAIAPIKey(ctx)
			if err != nil {
				return err
			}
			if key == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no API key configured")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (store)\n", store.MaskAPIKey(key))
			return nil
		})
	},
}

var apiKeyRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the stored API key",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(func(ctx context.Context, _ *profile.Profile, st *store.Store) error {
			if err := st.DeleteOpenAIAPIKey(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key removed")
			return nil
		})
	},
}

func init() {
	apiKeyCmd.AddCommand(apiKeySetCmd)
	apiKeyCmd.AddCommand(apiKeyShowCmd)
	apiKeyCmd.AddCommand(apiKeyRemoveCmd)
}

func withStore(fn func(ctx context.Context, p *profile.Profile, st *store.Store) error) error {
	p, err := newProfile()
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := openStore(ctx, p)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, p, st)
}
