package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestHealthCheck_NilDB(t *testing.T) {
	if err := HealthCheck(context.Background(), nil, time.Second); err == nil {
		t.Fatalf("expected error")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "leads_email_key"}
	wrapped := fmt.Errorf("insert lead: %w", dup)

	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"exact constraint", wrapped, "leads_email_key", true},
		{"any constraint", wrapped, "", true},
		{"other constraint", wrapped, "leads_pkey", false},
		{"other code", &pgconn.PgError{Code: "23503"}, "", false},
		{"plain error", errors.New("boom"), "", false},
		{"nil", nil, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsUniqueViolation(tc.err, tc.constraint); got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}
