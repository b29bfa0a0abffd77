// Command token issues an access/refresh pair for an operator, signed with
// the configured JWT secret.
//
//	token -user ops-1 -role analyst
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"lead-intake/internal/auth"
	"lead-intake/internal/config"
	"lead-intake/internal/rbac"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fsFlags := flag.NewFlagSet("token", flag.ContinueOnError)
	user := fsFlags.String("user", "", "operator id (required)")
	role := fsFlags.String("role", rbac.RoleAnalyst, "role: intake, analyst, admin, super_admin")
	if err := fsFlags.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*user) == "" {
		return errors.New("-user is required")
	}
	if !rbac.IsKnown(*role) {
		return fmt.Errorf("unknown role %q", *role)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.AuthEnabled() {
		return errors.New("JWT_SECRET is not set")
	}
	m, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return err
	}

	pair, err := m.IssuePair(time.Now(), *user, *role)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(pair)
}
