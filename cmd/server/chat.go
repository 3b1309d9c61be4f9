package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"randechat/internal/chat"
	"randechat/internal/model"
)

var chatSessionID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat in the terminal",
	Long: `Start an interactive chat over the same tool loop the HTTP API uses.

Type "konec", "quit", "exit" or "q" to leave.`,
	RunE: runChatCommand,
}

func init() {
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "Session ID (random if empty)")
}

func runChatCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.chat == nil {
		return fmt.Errorf("chat is disabled: set the API key for LLM provider %q", a.cfg.LLM.Provider)
	}

	sessionID := chatSessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return repl(ctx, a.chat, sessionID, cmd.InOrStdin(), cmd.OutOrStdout())
}

// turnRunner is the part of chat.Manager the terminal needs
type turnRunner interface {
	SendWithEvents(ctx context.Context, sessionID, text string, onEvent chat.EventFunc) model.TurnResult
}

func repl(ctx context.Context, m turnRunner, sessionID string, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Ahoj! Zeptej se mě na místa v Královéhradeckém kraji. Pro ukončení napiš \"konec\".")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nTy: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if isExit(line) {
			fmt.Fprintln(out, "Na shledanou!")
			return nil
		}

		result := m.SendWithEvents(ctx, sessionID, line, func(e chat.Event) {
			if e.Kind == chat.EventToolCall {
				fmt.Fprintf(out, "  [hledám: %s %v]\n", e.Call.Function, e.Call.Arguments)
			}
		})

		fmt.Fprintf(out, "\nAsistent: %s\n", result.Response)
		for i, p := range result.Locations {
			fmt.Fprintf(out, "  %d. %s (%s, %s)\n", i+1, p.Name, p.Category, p.Municipality)
		}
		if result.Error != "" {
			fmt.Fprintf(out, "  chyba: %s\n", result.Error)
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func isExit(line string) bool {
	switch strings.ToLower(line) {
	case "konec", "quit", "exit", "q":
		return true
	}
	return false
}
