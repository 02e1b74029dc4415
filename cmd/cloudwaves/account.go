package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"syscall"

	"golang.org/x/term"

	"github.com/llehouerou/cloudwaves/internal/account"
	"github.com/llehouerou/cloudwaves/internal/catalog"
	"github.com/llehouerou/cloudwaves/internal/config"
)

// passwordReader reads a password without echoing it.
type passwordReader func() ([]byte, error)

func readPassword() ([]byte, error) {
	return term.ReadPassword(int(syscall.Stdin))
}

// manageAccount runs --login or --logout against the saved account file.
func manageAccount(ctx context.Context, cfg *config.Config, logger *slog.Logger, o options, out io.Writer) error {
	rem, err := newRemote(cfg)
	if err != nil {
		return err
	}
	accountFile, err := account.DefaultFile()
	if err != nil {
		return fmt.Errorf("account file: %w", err)
	}
	accounts := account.NewManager(accountFile, rem, false, logger)
	defer accounts.Flush()

	if o.logout {
		return signOut(ctx, accounts, out)
	}
	creds := catalog.Credentials{Phone: o.phone, Account: o.login}
	return signIn(ctx, accounts, creds, out, readPassword)
}

func signIn(ctx context.Context, accounts *account.Manager, creds catalog.Credentials, out io.Writer, read passwordReader) error {
	fmt.Fprint(out, "Password: ")
	password, err := read()
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	creds.Password = string(password)

	fmt.Fprintln(out, "Signing in...")
	if err := accounts.SignIn(ctx, creds); err != nil {
		return err
	}

	name := creds.Account
	if p := accounts.Profile(); p != nil && p.Nickname != "" {
		name = p.Nickname
	}
	fmt.Fprintf(out, "Signed in as %s\n", name)
	return nil
}

func signOut(ctx context.Context, accounts *account.Manager, out io.Writer) error {
	if err := accounts.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Signed out")
	return nil
}
