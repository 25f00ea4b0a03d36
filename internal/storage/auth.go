package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/leapstack-labs/sqlgate/internal/config"
	"github.com/leapstack-labs/sqlgate/internal/template"
)

// Execer runs a statement that returns no rows.
type Execer interface {
	Exec(ctx context.Context, sql string) error
}

// Authenticator attaches storage credentials to a query engine connection.
type Authenticator struct {
	db     Execer
	logger *slog.Logger

	getenv func(string) string
	setenv func(string, string) error
}

// NewAuthenticator creates an authenticator issuing statements through db.
func NewAuthenticator(db Execer, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Authenticator{db: db, logger: logger, getenv: os.Getenv, setenv: os.Setenv}
}

// Setup prepares every backend the tables use and reports per-backend
// success. Failures are logged at WARN and never returned.
func (a *Authenticator) Setup(ctx context.Context, tables map[string]config.TableDefinition) Status {
	reqs := Requirements(tables)
	status := make(Status, len(reqs))

	for _, b := range Backends {
		meta, ok := reqs[b]
		if !ok {
			continue
		}
		err := a.setup(ctx, b, meta)
		status[b] = err == nil
		if err != nil {
			a.logger.Warn("storage authentication failed",
				slog.String("backend", string(b)),
				slog.String("error", err.Error()))
			continue
		}
		a.logger.Debug("storage backend ready", slog.String("backend", string(b)))
	}
	return status
}

func (a *Authenticator) setup(ctx context.Context, b Backend, meta map[string]any) error {
	if b == Local {
		return nil
	}
	opts, err := DecodeOptions(meta)
	if err != nil {
		return err
	}
	if b == GCS && opts.ServiceAccount != "" {
		if err := a.setenv("GOOGLE_APPLICATION_CREDENTIALS", opts.ServiceAccount); err != nil {
			return fmt.Errorf("failed to set service account: %w", err)
		}
	}
	for _, stmt := range a.Statements(b, opts) {
		if err := a.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Statements returns the statements that prepare backend b.
func (a *Authenticator) Statements(b Backend, opts Options) []string {
	switch b {
	case S3:
		region := firstNonEmpty(opts.Region, a.getenv("AWS_DEFAULT_REGION"), a.getenv("AWS_REGION"))
		secret := "CREATE OR REPLACE SECRET (TYPE s3, PROVIDER credential_chain"
		if region != "" {
			secret += ", REGION " + template.Quote(region)
		}
		return []string{"INSTALL aws", "LOAD aws", secret + ")"}

	case GCS:
		stmts := []string{"INSTALL httpfs", "LOAD httpfs"}
		if opts.KeyID != "" && opts.Secret != "" {
			parts := []string{"TYPE gcs", "KEY_ID " + template.Quote(opts.KeyID), "SECRET " + template.Quote(opts.Secret)}
			if opts.Endpoint != "" {
				parts = append(parts, "ENDPOINT "+template.Quote(opts.Endpoint))
			}
			return append(stmts, "CREATE OR REPLACE SECRET ("+strings.Join(parts, ", ")+")")
		}
		return append(stmts, "CREATE OR REPLACE SECRET (TYPE gcs, PROVIDER credential_chain)")

	case Azure:
		return []string{"INSTALL azure", "LOAD azure", "CREATE OR REPLACE SECRET (TYPE azure, PROVIDER credential_chain)"}

	case HTTP:
		stmts := []string{"INSTALL httpfs", "LOAD httpfs"}
		switch {
		case opts.BearerToken != "":
			stmts = append(stmts, "CREATE OR REPLACE SECRET http_auth (TYPE http, BEARER_TOKEN "+template.Quote(opts.BearerToken)+")")
		case len(opts.AuthHeaders) > 0:
			stmts = append(stmts, "CREATE OR REPLACE SECRET http_auth (TYPE http, EXTRA_HTTP_HEADERS MAP {"+headerMap(opts.AuthHeaders)+"})")
		}
		return stmts

	default:
		return nil
	}
}

func headerMap(headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = template.Quote(k) + ": " + template.Quote(headers[k])
	}
	return strings.Join(pairs, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
