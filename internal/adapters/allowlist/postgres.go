package allowlist

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by *pgxpool.Pool and *database.PostgreSQLAdapter
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const selectActiveIPs = `
	SELECT ip_address
	FROM mpesa_callback_allowlist
	WHERE is_active = true
	ORDER BY ip_address
`

// PostgresSource loads active rows from the mpesa_callback_allowlist table
type PostgresSource struct {
	db Querier
}

func NewPostgresSource(db Querier) *PostgresSource {
	return &PostgresSource{db: db}
}

func (p *PostgresSource) Load(ctx context.Context) ([]string, error) {
	rows, err := p.db.Query(ctx, selectActiveIPs)
	if err != nil {
		return nil, fmt.Errorf("failed to query allow-list: %w", err)
	}

	entries, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan allow-list: %w", err)
	}
	return entries, nil
}

func (p *PostgresSource) Name() string { return "postgres" }
