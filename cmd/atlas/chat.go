package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hrygo/atlas/plugin/ai/assistant"
	"github.com/hrygo/atlas/plugin/ai/timeout"
	"github.com/hrygo/atlas/server/chat"
	apiv1 "github.com/hrygo/atlas/server/router/api/v1"
)

const disconnectedNotice = "⚠️  Sem conexão com o assistente. Verifique a chave da API (atlas apikey set)."

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with an assistant surface in the terminal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		surfaceKey, err := cmd.Flags().GetString("surface")
		if err != nil {
			return err
		}

		p, err := newProfile()
		if err != nil {
			return err
		}
		// Keep the terminal readable: only warnings and errors go to stderr.
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		st, err := openStore(ctx, p)
		if err != nil {
			return err
		}
		defer st.Close()

		client := assistant.NewClient(apiv1.NewKeySource(p, st), assistant.Config{
			BaseURL: p.OpenAIBaseURL,
			Timeout: timeout.GatewayRequestTimeout,
		})
		registry := chat.NewRegistry(client.Gateway(), chat.DefaultCatalog(p), chat.RegistryConfig{
			Surface:   chat.SurfaceConfig{UserName: p.UserName, Logger: logger},
			Recorders: apiv1.NewConversationRecorders(st),
		})
		defer registry.Close()

		surface, err := registry.Open(ctx, surfaceKey)
		if err != nil {
			return err
		}
		return runChat(ctx, surface, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().String("surface", chat.PersonaChat, "surface to open (chat or negotiator)")
}

// runChat reads one submission per line until EOF, /quit or cancellation.
// A line "/<label>" naming a quick action of the persona runs that action.
// Any other line is submitted as typed.
func runChat(ctx context.Context, surface *chat.Surface, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "== %s ==\n", surface.Persona.Title)
	for _, turn := range surface.Turns() {
		printTurn(out, turn)
	}
	if !surface.Connected() {
		fmt.Fprintln(out, disconnectedNotice)
	}
	if len(surface.Persona.QuickActions) > 0 {
		labels := make([]string, 0, len(surface.Persona.QuickActions))
		for _, qa := range surface.Persona.QuickActions {
			labels = append(labels, "/"+qa.Label)
		}
		fmt.Fprintf(out, "Ações rápidas: %s\n", strings.Join(labels, " "))
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "/quit" || line == "/exit" {
			return nil
		}

		var outcome chat.Outcome
		if label, ok := quickActionLabel(surface.Persona, line); ok {
			outcome = surface.QuickAction(ctx, label)
		} else {
			outcome = surface.Submit(ctx, scanner.Text())
		}

		switch outcome.Kind {
		case chat.OutcomeSuccess, chat.OutcomeFailure:
			printTurn(out, outcome.Reply)
		case chat.OutcomeIgnored:
			if !surface.Connected() {
				fmt.Fprintln(out, disconnectedNotice)
			}
		}
	}
}

func quickActionLabel(persona chat.Persona, line string) (string, bool) {
	label, ok := strings.CutPrefix(line, "/")
	if !ok {
		return "", false
	}
	if _, ok := persona.Prompt(label); !ok {
		return "", false
	}
	return label, true
}

func printTurn(out io.Writer, turn chat.Turn) {
	prefix := "você"
	if turn.Role == assistant.RoleAssistant {
		prefix = "assistente"
	}
	fmt.Fprintf(out, "[%s] %s\n\n", prefix, turn.Content)
}
