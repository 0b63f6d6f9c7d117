package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	auth "github.com/goliatone/go-pwauth"
	"github.com/goliatone/go-pwauth/directory"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

type app struct {
	envFile string
	stdout  io.Writer
	stderr  io.Writer
}

func (a *app) settings() (*auth.Settings, error) {
	if a.envFile != "" {
		return auth.LoadSettings(a.envFile)
	}
	return auth.LoadSettings()
}

func (a *app) promptPassword(prompt string) (string, error) {
	fmt.Fprint(a.stderr, prompt)
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(a.stderr)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// hasher uses configured parameters when settings load, defaults otherwise
func (a *app) hasher() *auth.Hasher {
	s, err := a.settings()
	if err != nil {
		return auth.NewDefaultHasher()
	}
	return auth.NewHasherFromConfig(s)
}

func (a *app) runHash(args []string) error {
	password, err := a.promptPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := a.promptPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	digest, err := a.hasher().Hash(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, digest)
	return nil
}

func (a *app) runVerify(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: verify <digest>")
	}

	password, err := a.promptPassword("Password: ")
	if err != nil {
		return err
	}

	h := a.hasher()
	if !h.Verify(password, args[0]) {
		return auth.ErrInvalidCredentials
	}

	fmt.Fprintln(a.stdout, "ok")
	if h.NeedsRehash(args[0]) {
		fmt.Fprintln(a.stdout, "digest uses outdated parameters and should be rehashed")
	}
	return nil
}

func (a *app) runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	ttl := fs.Duration("ttl", 0, "token lifetime, zero for the configured default")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: token [-ttl d] <subject> [scope...]")
	}

	s, err := a.settings()
	if err != nil {
		return err
	}

	tokens := auth.NewTokenServiceFromConfig(s)
	token, err := tokens.Issue(fs.Arg(0), fs.Args()[1:], *ttl)
	if err != nil {
		return err
	}

	return writeJSON(a.stdout, map[string]any{
		"access_token": token.SignedString,
		"token_type":   token.TokenType,
		"expires_at":   token.ExpiresAt.Format(time.RFC3339),
		"scope":        token.Scope(),
	})
}

func (a *app) runInspect(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: inspect <token>")
	}

	s, err := a.settings()
	if err != nil {
		return err
	}

	tokens := auth.NewTokenServiceFromConfig(s)
	claims, err := tokens.Verify(strings.TrimSpace(args[0]))
	if err != nil {
		return fmt.Errorf("%s: %w", auth.KindOf(err), err)
	}

	return writeJSON(a.stdout, map[string]any{
		"sub":    claims.Subject(),
		"jti":    claims.TokenID(),
		"iat":    claims.IssuedAt().Format(time.RFC3339),
		"exp":    claims.Expires().Format(time.RFC3339),
		"scopes": claims.Scopes,
	})
}

func (a *app) runUserAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("useradd", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	inactive := fs.Bool("inactive", false, "create the account disabled")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: useradd [-name n] [-email e] <identifier>")
	}

	s, err := a.settings()
	if err != nil {
		return err
	}

	store, closer, err := directory.Open(ctx, s)
	if err != nil {
		return err
	}
	defer closer.Close()

	password, err := a.promptPassword("Password: ")
	if err != nil {
		return err
	}

	digest, err := auth.NewHasherFromConfig(s).Hash(password)
	if err != nil {
		return err
	}

	record, err := store.Save(ctx, auth.UserRecord{
		Identifier:     fs.Arg(0),
		DisplayName:    *name,
		Email:          *email,
		Active:         !*inactive,
		PasswordDigest: digest,
	})
	if err != nil {
		return err
	}

	return writeJSON(a.stdout, record.Principal())
}

func (a *app) runSetActive(ctx context.Context, args []string, active bool) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: enable|disable <identifier>")
	}

	s, err := a.settings()
	if err != nil {
		return err
	}

	store, closer, err := directory.Open(ctx, s)
	if err != nil {
		return err
	}
	defer closer.Close()

	return store.SetActive(ctx, args[0], active)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
