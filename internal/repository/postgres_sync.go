package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dhoini/stripe-sync/internal/domain"
	"github.com/Dhoini/stripe-sync/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	upsertCustomerQuery = `
		INSERT INTO stripe_customers (id, email, name, user_id, metadata, created_at, synced_at)
		VALUES (:id, :email, :name, :user_id, :metadata, :created_at, :synced_at)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			user_id = EXCLUDED.user_id,
			metadata = EXCLUDED.metadata,
			created_at = EXCLUDED.created_at,
			synced_at = EXCLUDED.synced_at
		WHERE stripe_customers.synced_at <= EXCLUDED.synced_at`

	upsertSubscriptionQuery = `
		INSERT INTO stripe_subscriptions (id, customer_id, status, current_period_start, current_period_end,
			cancel_at_period_end, items, metadata, created_at, synced_at)
		VALUES (:id, :customer_id, :status, :current_period_start, :current_period_end,
			:cancel_at_period_end, :items, :metadata, :created_at, :synced_at)
		ON CONFLICT (id) DO UPDATE SET
			customer_id = EXCLUDED.customer_id,
			status = EXCLUDED.status,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			items = EXCLUDED.items,
			metadata = EXCLUDED.metadata,
			created_at = EXCLUDED.created_at,
			synced_at = EXCLUDED.synced_at
		WHERE stripe_subscriptions.synced_at <= EXCLUDED.synced_at`
)

type customerRow struct {
	ID        string         `db:"id"`
	Email     string         `db:"email"`
	Name      string         `db:"name"`
	UserID    sql.NullString `db:"user_id"`
	Metadata  []byte         `db:"metadata"`
	CreatedAt sql.NullTime   `db:"created_at"`
	SyncedAt  time.Time      `db:"synced_at"`
}

type subscriptionRow struct {
	ID                 string       `db:"id"`
	CustomerID         string       `db:"customer_id"`
	Status             string       `db:"status"`
	CurrentPeriodStart time.Time    `db:"current_period_start"`
	CurrentPeriodEnd   time.Time    `db:"current_period_end"`
	CancelAtPeriodEnd  bool         `db:"cancel_at_period_end"`
	Items              []byte       `db:"items"`
	Metadata           []byte       `db:"metadata"`
	CreatedAt          sql.NullTime `db:"created_at"`
	SyncedAt           time.Time    `db:"synced_at"`
}

// PostgresSync - адаптер синхронизации: сохраняет снимки клиентов и подписок в PostgreSQL.
// Повторная доставка перезаписывает строку (upsert по ID).
type PostgresSync struct {
	db  *sqlx.DB
	log *logger.Logger
	now func() time.Time
}

func NewPostgresSync(db *sqlx.DB, log *logger.Logger) *PostgresSync {
	return &PostgresSync{db: db, log: log, now: time.Now}
}

// NewPostgresDB открывает пул соединений через драйвер pgx и проверяет подключение
func NewPostgresDB(ctx context.Context, dsn string, log *logger.Logger) (*sqlx.DB, error) {
	log.Info("Connecting to PostgreSQL")

	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	log.Info("Successfully connected to PostgreSQL")
	return db, nil
}

// Migrate применяет встроенные миграции схемы синхронизации
func Migrate(ctx context.Context, db *sqlx.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func (s *PostgresSync) OnCustomerCreated(ctx context.Context, c domain.Customer) error {
	metadata, err := marshalJSON(c.Metadata, "{}")
	if err != nil {
		return err
	}

	row := customerRow{
		ID:        c.ID,
		Email:     c.Email,
		Name:      c.Name,
		UserID:    sql.NullString{String: c.UserID(), Valid: c.UserID() != ""},
		Metadata:  metadata,
		CreatedAt: nullTime(c.CreatedAt),
		SyncedAt:  s.now().UTC(),
	}
	if _, err := s.db.NamedExecContext(ctx, upsertCustomerQuery, row); err != nil {
		s.log.Errorw("Failed to upsert customer", "stripeCustomerID", c.ID, "error", err)
		return fmt.Errorf("failed to upsert customer %s: %w", c.ID, err)
	}

	s.log.Debugw("Customer synced to PostgreSQL", "stripeCustomerID", c.ID)
	return nil
}

func (s *PostgresSync) OnSubscriptionUpdated(ctx context.Context, sub domain.Subscription) error {
	return s.upsertSubscription(ctx, sub)
}

func (s *PostgresSync) OnSubscriptionCanceled(ctx context.Context, sub domain.Subscription) error {
	return s.upsertSubscription(ctx, sub)
}

func (s *PostgresSync) upsertSubscription(ctx context.Context, sub domain.Subscription) error {
	items, err := marshalJSON(sub.Items, "[]")
	if err != nil {
		return err
	}
	metadata, err := marshalJSON(sub.Metadata, "{}")
	if err != nil {
		return err
	}

	row := subscriptionRow{
		ID:                 sub.ID,
		CustomerID:         sub.CustomerID,
		Status:             string(sub.Status),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		Items:              items,
		Metadata:           metadata,
		CreatedAt:          nullTime(sub.CreatedAt),
		SyncedAt:           s.now().UTC(),
	}
	if _, err := s.db.NamedExecContext(ctx, upsertSubscriptionQuery, row); err != nil {
		s.log.Errorw("Failed to upsert subscription", "subscriptionID", sub.ID, "error", err)
		return fmt.Errorf("failed to upsert subscription %s: %w", sub.ID, err)
	}

	s.log.Debugw("Subscription synced to PostgreSQL", "subscriptionID", sub.ID, "status", string(sub.Status))
	return nil
}

// Ping проверяет доступность базы (health check)
func (s *PostgresSync) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func marshalJSON(v any, empty string) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode json column: %w", err)
	}
	if string(b) == "null" {
		return []byte(empty), nil
	}
	return b, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
