package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"pawchat/backend/internal/models"
	"pawchat/backend/internal/session"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat <conversation_id>",
	Short: "Open a conversation and chat in real time",
	Long: `Opens a conversation, prints its history and then every new message.
Each line typed on stdin is sent. Commands:
  /read   mark everything read (and reconnect if the stream dropped)
  /quit   leave the chat`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

// transcript prints each timeline message once.
type transcript struct {
	mu      sync.Mutex
	w       io.Writer
	viewer  string
	printed map[string]bool
}

func (t *transcript) render(msgs []models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range msgs {
		if t.printed[m.ID] {
			continue
		}
		t.printed[m.ID] = true
		printMessage(t.w, t.viewer, m)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	c, userID, err := authedClient()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	out := cmd.OutOrStdout()

	tr := &transcript{w: out, viewer: userID, printed: make(map[string]bool)}
	var ctrl *session.Controller
	ctrl = session.NewController(args[0], userID, c, c,
		session.WithLogger(logger),
		session.WithOnChange(func() {
			if ctrl.State() == session.Ready || ctrl.State() == session.Sending {
				tr.render(ctrl.Messages())
			}
		}),
	)
	defer ctrl.Close()

	if err := ctrl.Open(ctx); err != nil {
		return fmt.Errorf("open chat: %w", err)
	}
	if view := ctrl.View(); view != nil {
		fmt.Fprintf(out, "Chat with %s", view.Other.DisplayName)
		if view.Booking != nil {
			fmt.Fprintf(out, " - booking for %s (%s)", view.Booking.PetName, view.Booking.Status)
		}
		fmt.Fprintln(out)
	}
	tr.render(ctrl.Messages())

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch strings.TrimSpace(line) {
			case "/quit":
				return nil
			case "/read":
				if err := ctrl.Focus(ctx); err != nil {
					fmt.Fprintf(out, "! %v\n", err)
				}
				continue
			}
			ctrl.SetInput(line)
			if _, err := ctrl.Send(ctx); err != nil {
				if errors.Is(err, models.ErrEmptyBody) {
					continue
				}
				fmt.Fprintf(out, "! not sent: %v\n", err)
			}
		}
	}
}
