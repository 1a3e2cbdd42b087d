// Package cli provides the pawchat command-line client.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"pawchat/backend/internal/client"
	"pawchat/backend/internal/config"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	serverURL string
	token     string
	verbose   bool

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pawchat",
	Short: "Direct messages between pet owners and sitters",
	Long: `pawchat talks to a PawChat server: open conversations, follow your inbox
and chat in real time.

Authenticate with --token or PAWCHAT_TOKEN. Against a development server,
"pawchat token <user_id>" issues one.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var stderr io.Writer = io.Discard
		level := slog.LevelWarn
		if verbose {
			stderr = os.Stderr
			level = slog.LevelDebug
		}
		logger = config.SetupLoggerWithWriters(stderr, io.Discard, level)

		if serverURL == "" {
			serverURL = config.Load().ServerBaseURL
		}
		if token == "" {
			token = os.Getenv("PAWCHAT_TOKEN")
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server base URL (default $PAWCHAT_SERVER_URL)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "bearer token (default $PAWCHAT_TOKEN)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(inboxCmd)
	rootCmd.AddCommand(chatCmd)
}

// authedClient returns a client and the user id named by the token.
func authedClient() (*client.Client, string, error) {
	if token == "" {
		return nil, "", fmt.Errorf("no token: pass --token or set PAWCHAT_TOKEN")
	}
	userID, err := tokenSubject(token)
	if err != nil {
		return nil, "", err
	}
	return client.New(serverURL, token, logger), userID, nil
}

// tokenSubject reads the user id from the token without verifying it; the
// server does that.
func tokenSubject(tokenString string) (string, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}
