package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"pawchat/backend/internal/client"
	"pawchat/backend/internal/models"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user_id>",
	Short: "Issue a development token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL, "", logger)
		tok, err := c.IssueToken(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

var openBooking string

var openCmd = &cobra.Command{
	Use:   "open <other_user_id>",
	Short: "Find or start the conversation with another user",
	Long: `Prints the id of the conversation with the given user, creating it on
first contact. --booking links a new conversation to a booking.

Examples:
  pawchat open sitter-42
  pawchat open sitter-42 --booking bk-1001`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := authedClient()
		if err != nil {
			return err
		}
		var ref *string
		if openBooking != "" {
			ref = &openBooking
		}
		id, err := c.FindOrCreateConversation(cmd.Context(), args[0], ref)
		if err != nil {
			return fmt.Errorf("open conversation: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	openCmd.Flags().StringVar(&openBooking, "booking", "", "booking reference for a new conversation")
}

// printSummaries writes the directory as one line per conversation.
func printSummaries(w io.Writer, summaries []models.ConversationSummary) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No conversations.")
		return
	}
	for _, s := range summaries {
		preview := ""
		if s.LastMessage != nil {
			preview = truncate(s.LastMessage.Body, 40)
		}
		unread := ""
		if s.UnreadCount > 0 {
			unread = fmt.Sprintf("(%d)", s.UnreadCount)
		}
		fmt.Fprintf(w, "[%-2s] %-20s %-5s %s  %s\n",
			s.Other.Initials(), s.Other.DisplayName, unread,
			s.Conversation.LastMessageAt.Local().Format(time.DateTime), preview)
		fmt.Fprintf(w, "     %s\n", s.Conversation.ID)
	}
}

func printMessage(w io.Writer, viewerID string, m models.Message) {
	who := m.SenderID
	if who == viewerID {
		who = "you"
	}
	fmt.Fprintf(w, "%s  %s: %s\n", m.CreatedAt.Local().Format(time.TimeOnly), who, m.Body)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}

func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
