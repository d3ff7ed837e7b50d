package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
)

const MaxPageSize = domain.MaxConsumerPage

const selectConsumerColumns = `
SELECT account_id, is_commercial, is_commercial_prob, address, building_type, rooms_count, residents_count, total_area
FROM electricity_consumers
`

type ConsumerRepository struct {
	db *sqlx.DB
}

func NewConsumerRepository(db *sql.DB) *ConsumerRepository {
	return &ConsumerRepository{db: sqlx.NewDb(db, "pgx")}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ConsumerRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent ingest runs.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026031501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS electricity_consumers (
	account_id TEXT PRIMARY KEY,
	is_commercial BOOLEAN NOT NULL,
	is_commercial_prob DOUBLE PRECISION,
	address TEXT NOT NULL DEFAULT '',
	building_type VARCHAR(50) NOT NULL DEFAULT '',
	rooms_count INTEGER NOT NULL DEFAULT 0,
	residents_count INTEGER NOT NULL DEFAULT 0,
	total_area DOUBLE PRECISION,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS monthly_consumption (
	id BIGSERIAL PRIMARY KEY,
	account_id TEXT NOT NULL REFERENCES electricity_consumers(account_id) ON DELETE CASCADE,
	month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
	value DOUBLE PRECISION NOT NULL DEFAULT 0,
	UNIQUE (account_id, month)
);

CREATE INDEX IF NOT EXISTS idx_consumers_prob ON electricity_consumers(is_commercial_prob DESC NULLS LAST);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const upsertConsumerQuery = `
INSERT INTO electricity_consumers (
	account_id, is_commercial, is_commercial_prob, address, building_type, rooms_count, residents_count, total_area, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (account_id) DO UPDATE SET
	is_commercial = EXCLUDED.is_commercial,
	is_commercial_prob = EXCLUDED.is_commercial_prob,
	address = EXCLUDED.address,
	building_type = EXCLUDED.building_type,
	rooms_count = EXCLUDED.rooms_count,
	residents_count = EXCLUDED.residents_count,
	total_area = EXCLUDED.total_area,
	updated_at = EXCLUDED.updated_at
`

var upsertMonthsQuery = func() string {
	tuples := make([]string, 12)
	for m := 1; m <= 12; m++ {
		tuples[m-1] = fmt.Sprintf("($1,%d,$%d)", m, m+1)
	}
	return `
INSERT INTO monthly_consumption (account_id, month, value)
VALUES ` + strings.Join(tuples, ",") + `
ON CONFLICT (account_id, month) DO UPDATE SET value = EXCLUDED.value
`
}()

func (r *ConsumerRepository) UpsertConsumers(ctx context.Context, records []*domain.ConsumerRecord) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	stored := 0
	for _, rec := range records {
		if !rec.HasID() || rec.IsCommercial == nil {
			continue
		}
		if _, err := tx.ExecContext(ctx, upsertConsumerQuery,
			rec.AccountID, *rec.IsCommercial, rec.Probability, rec.Address, rec.BuildingType,
			rec.RoomsCount, rec.ResidentsCount, rec.TotalArea, now,
		); err != nil {
			return 0, fmt.Errorf("upsert consumer %s: %w", rec.AccountID, err)
		}

		args := make([]any, 0, 13)
		args = append(args, rec.AccountID)
		for m := 1; m <= 12; m++ {
			args = append(args, rec.Usage(m))
		}
		if _, err := tx.ExecContext(ctx, upsertMonthsQuery, args...); err != nil {
			return 0, fmt.Errorf("upsert consumption %s: %w", rec.AccountID, err)
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert tx: %w", err)
	}
	return stored, nil
}

func (r *ConsumerRepository) ListByProbability(ctx context.Context, limit, offset int) ([]domain.StoredConsumer, error) {
	if limit <= 0 || offset < 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list consumers", fmt.Errorf("invalid page limit=%d offset=%d", limit, offset))
	}
	limit = min(limit, MaxPageSize)

	out := make([]domain.StoredConsumer, 0, limit)
	err := r.db.SelectContext(ctx, &out, selectConsumerColumns+`
ORDER BY is_commercial_prob DESC NULLS LAST, account_id
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list consumers: %w", err)
	}
	if err := r.attachConsumption(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ConsumerRepository) GetConsumer(ctx context.Context, accountID string) (domain.StoredConsumer, error) {
	var c domain.StoredConsumer
	err := r.db.GetContext(ctx, &c, selectConsumerColumns+`WHERE account_id = $1`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoredConsumer{}, domain.WrapError(domain.ErrNotFound, "get consumer", fmt.Errorf("account %q", accountID))
	}
	if err != nil {
		return domain.StoredConsumer{}, fmt.Errorf("get consumer %s: %w", accountID, err)
	}
	page := []domain.StoredConsumer{c}
	if err := r.attachConsumption(ctx, page); err != nil {
		return domain.StoredConsumer{}, err
	}
	return page[0], nil
}

type monthRow struct {
	AccountID string  `db:"account_id"`
	Month     int     `db:"month"`
	Value     float64 `db:"value"`
}

// attachConsumption fills the monthly usage of a page with one query.
func (r *ConsumerRepository) attachConsumption(ctx context.Context, page []domain.StoredConsumer) error {
	if len(page) == 0 {
		return nil
	}
	ids := make([]string, len(page))
	index := make(map[string]int, len(page))
	for i := range page {
		ids[i] = page[i].AccountID
		index[page[i].AccountID] = i
		page[i].Consumption = map[string]float64{}
	}

	query, args, err := sqlx.In(`SELECT account_id, month, value FROM monthly_consumption WHERE account_id IN (?) ORDER BY account_id, month`, ids)
	if err != nil {
		return fmt.Errorf("build consumption query: %w", err)
	}
	var rows []monthRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("load consumption: %w", err)
	}
	for _, row := range rows {
		if i, ok := index[row.AccountID]; ok {
			page[i].Consumption[strconv.Itoa(row.Month)] = row.Value
		}
	}
	return nil
}
