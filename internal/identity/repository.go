package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the phone or uid has no record. Transport faults are
// returned as distinct errors and must not be conflated with a miss.
var ErrNotFound = errors.New("identity: not found")

// Repository persists users and their phone links. Create writes the user
// record and its uid index together; implementations must not leave one
// without the other.
type Repository interface {
	FindByPrimaryPhone(ctx context.Context, hashedPhone string) (User, error)
	FindByUID(ctx context.Context, uid string) (User, error)
	// FindPrimaryForSecondary returns the hashed primary phone a secondary
	// phone links to.
	FindPrimaryForSecondary(ctx context.Context, hashedPhone string) (string, error)
	Create(ctx context.Context, user User) error
	// LinkSecondary attaches an additional hashed phone to an existing
	// primary phone's identity.
	LinkSecondary(ctx context.Context, hashedSecondary, hashedPrimary string) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindByPrimaryPhone fetches the user keyed by the hashed primary phone.
func (r *PostgresRepository) FindByPrimaryPhone(ctx context.Context, hashedPhone string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT uid, phone_hash, name, show_replies, created_at
        FROM users WHERE phone_hash = $1`, hashedPhone)
	return r.scanUser(ctx, row)
}

// FindByUID fetches the user through the uid index.
func (r *PostgresRepository) FindByUID(ctx context.Context, uid string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT u.uid, u.phone_hash, u.name, u.show_replies, u.created_at
        FROM uid_index i JOIN users u ON u.phone_hash = i.phone_hash WHERE i.uid = $1`, uid)
	return r.scanUser(ctx, row)
}

// FindPrimaryForSecondary dereferences a secondary phone link.
func (r *PostgresRepository) FindPrimaryForSecondary(ctx context.Context, hashedPhone string) (string, error) {
	var primary string
	err := r.db.QueryRow(ctx, `SELECT primary_hash FROM secondary_phones
        WHERE secondary_hash = $1`, hashedPhone).Scan(&primary)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("secondary lookup: %w", err)
	}
	return primary, nil
}

// Create inserts the user record and its uid index in one transaction.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create user: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `INSERT INTO users (uid, phone_hash, name, show_replies, created_at)
        VALUES ($1, $2, $3, $4, $5)`, user.UID, user.Phone, user.Name, user.ShowReplies, user.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	_, err = tx.Exec(ctx, `INSERT INTO uid_index (uid, phone_hash) VALUES ($1, $2)`, user.UID, user.Phone)
	if err != nil {
		return fmt.Errorf("insert uid index: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create user: %w", err)
	}
	return nil
}

// LinkSecondary records that hashedSecondary resolves to hashedPrimary.
func (r *PostgresRepository) LinkSecondary(ctx context.Context, hashedSecondary, hashedPrimary string) error {
	cmd, err := r.db.Exec(ctx, `INSERT INTO secondary_phones (secondary_hash, primary_hash)
        SELECT $1, phone_hash FROM users WHERE phone_hash = $2`, hashedSecondary, hashedPrimary)
	if err != nil {
		return fmt.Errorf("link secondary: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) scanUser(ctx context.Context, row pgx.Row) (User, error) {
	var (
		user      User
		createdAt time.Time
	)
	if err := row.Scan(&user.UID, &user.Phone, &user.Name, &user.ShowReplies, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = createdAt.UTC()

	user.Secondary = map[string]string{}
	rows, err := r.db.Query(ctx, `SELECT secondary_hash FROM secondary_phones WHERE primary_hash = $1`, user.Phone)
	if err != nil {
		return User{}, fmt.Errorf("load secondaries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var secondary string
		if err := rows.Scan(&secondary); err != nil {
			return User{}, fmt.Errorf("scan secondary: %w", err)
		}
		user.Secondary[secondary] = user.UID
	}
	return user, rows.Err()
}
