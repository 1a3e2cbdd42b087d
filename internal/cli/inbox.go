package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"pawchat/backend/internal/inbox"

	"github.com/spf13/cobra"
)

var (
	inboxWatch       bool
	inboxFullRefresh bool
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List your conversations",
	Long: `Lists your conversations, most recent first, with unread counts.
With --watch the list is redrawn whenever a message arrives.`,
	Args: cobra.NoArgs,
	RunE: runInbox,
}

func init() {
	inboxCmd.Flags().BoolVarP(&inboxWatch, "watch", "w", false, "keep the list updated in real time")
	inboxCmd.Flags().BoolVar(&inboxFullRefresh, "full-refresh", false, "reload the whole list on every message")
}

func runInbox(cmd *cobra.Command, args []string) error {
	c, userID, err := authedClient()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	ctx := contextOrBackground(cmd)

	if !inboxWatch {
		summaries, err := c.ListConversations(ctx)
		if err != nil {
			return fmt.Errorf("list conversations: %w", err)
		}
		printSummaries(out, summaries)
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []inbox.Option{inbox.WithLogger(logger)}
	if inboxFullRefresh {
		opts = append(opts, inbox.WithFullRefresh())
	}
	var w *inbox.Watcher
	opts = append(opts, inbox.WithOnChange(func() {
		fmt.Fprintf(out, "\n--- inbox (%d unread) ---\n", w.TotalUnread())
		printSummaries(out, w.Summaries())
	}))
	w = inbox.NewWatcher(userID, c, c, opts...)

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start inbox: %w", err)
	}
	defer w.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-w.Done():
		return fmt.Errorf("realtime stream closed by server")
	}
}
