package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fieldlogger/evidencedrive/internal/auth"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize access to Google Drive and store the refresh token",
		RunE:  runLogin,
	}
}

func runLogin(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := context.Background()

	broker, err := auth.New(resolvedCfg, logger)
	if err != nil {
		return err
	}

	// The auth prompt must always be visible — not suppressed by --quiet.
	fmt.Fprintf(os.Stderr, "Visit this URL to authorize access:\n\n  %s\n\n", broker.AuthorizationURL())
	fmt.Fprint(os.Stderr, "Paste the authorization code here: ")

	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading authorization code: %w", err)
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("no authorization code entered")
	}

	if _, err := broker.ExchangeCode(ctx, code); err != nil {
		return err
	}

	logger.Info("login successful")
	statusf("Login successful. Credentials saved.\n")

	return nil
}
