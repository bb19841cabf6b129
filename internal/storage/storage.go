package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gestentre/internal/models"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const (
	usersTable = "users"

	uniqueViolation = "23505"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidRow   = errors.New("invalid row")
)

type Storage interface {
	// Authentication
	GetCredentialsByEmail(ctx context.Context, email string) (models.Credentials, error)
	GetActiveUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	UpdateLastLogin(ctx context.Context, userID uuid.UUID) error

	// Bootstrap
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	CreateUser(ctx context.Context, user models.User, passwordHash string) (uuid.UUID, error)

	Ping(ctx context.Context) error
	Close()
}

// querier is the subset of *pgxpool.Pool the storage uses.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

type PostgresStorage struct {
	db querier
}

func NewPostgresStorage(ctx context.Context, dbURL string) (*PostgresStorage, error) {
	const op = "storage.NewPostgresStorage"

	conn, err := pgxpool.Connect(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &PostgresStorage{
		db: conn,
	}, nil
}

// userColumns must stay in step with userRow.scanTargets.
const userColumns = "id::text, nom, email, role, active, created_at, last_login"

type userRow struct {
	ID        string
	Name      *string
	Email     *string
	Role      *string
	Active    bool
	CreatedAt time.Time
	LastLogin *time.Time
}

func (r *userRow) scanTargets() []interface{} {
	return []interface{}{&r.ID, &r.Name, &r.Email, &r.Role, &r.Active, &r.CreatedAt, &r.LastLogin}
}

// toUser rejects rows missing the fields authentication depends on.
func (r *userRow) toUser() (models.User, error) {
	id, err := uuid.FromString(r.ID)
	if err != nil || id == uuid.Nil {
		return models.User{}, fmt.Errorf("%w: bad id %q", ErrInvalidRow, r.ID)
	}
	if r.Email == nil || strings.TrimSpace(*r.Email) == "" {
		return models.User{}, fmt.Errorf("%w: user %s has no email", ErrInvalidRow, id)
	}
	if r.Role == nil || !models.ValidRole(*r.Role) {
		return models.User{}, fmt.Errorf("%w: user %s has unknown role", ErrInvalidRow, id)
	}

	user := models.User{
		ID:        id,
		Email:     *r.Email,
		Role:      *r.Role,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
		LastLogin: r.LastLogin,
	}
	if r.Name != nil {
		user.Name = *r.Name
	}

	return user, nil
}

func (p *PostgresStorage) GetCredentialsByEmail(ctx context.Context, email string) (models.Credentials, error) {
	const op = "storage.GetCredentialsByEmail"

	var row userRow
	var hash *string
	query := fmt.Sprintf("SELECT %s, password_hash FROM %s WHERE email=$1 AND active=TRUE LIMIT 1", userColumns, usersTable)

	err := p.db.QueryRow(ctx, query, email).Scan(append(row.scanTargets(), &hash)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Credentials{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return models.Credentials{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := row.toUser()
	if err != nil {
		return models.Credentials{}, fmt.Errorf("%s: %w", op, err)
	}
	if hash == nil || *hash == "" {
		return models.Credentials{}, fmt.Errorf("%s: %w: user %s has no password hash", op, ErrInvalidRow, user.ID)
	}

	return models.Credentials{User: user, PasswordHash: *hash}, nil
}

func (p *PostgresStorage) GetActiveUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	const op = "storage.GetActiveUserByID"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id=$1 AND active=TRUE", userColumns, usersTable)

	return p.getUser(ctx, op, query, userID.String())
}

func (p *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.GetUserByEmail"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE email=$1", userColumns, usersTable)

	return p.getUser(ctx, op, query, email)
}

func (p *PostgresStorage) getUser(ctx context.Context, op, query string, arg interface{}) (models.User, error) {
	var row userRow

	if err := p.db.QueryRow(ctx, query, arg).Scan(row.scanTargets()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := row.toUser()
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	const op = "storage.UpdateLastLogin"

	query := fmt.Sprintf("UPDATE %s SET last_login=now() WHERE id=$1", usersTable)

	if _, err := p.db.Exec(ctx, query, userID.String()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *PostgresStorage) CreateUser(ctx context.Context, user models.User, passwordHash string) (uuid.UUID, error) {
	const op = "storage.CreateUser"

	if !models.ValidRole(user.Role) {
		return uuid.Nil, fmt.Errorf("%s: unknown role %q", op, user.Role)
	}

	var id string
	query := fmt.Sprintf("INSERT INTO %s(nom, email, password_hash, role, active) VALUES ($1, $2, $3, $4, $5) RETURNING id::text;", usersTable)

	err := p.db.QueryRow(ctx, query, user.Name, user.Email, passwordHash, user.Role, user.Active).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return uuid.Nil, fmt.Errorf("%s: %w", op, ErrUserExists)
		}
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	userID, err := uuid.FromString(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return userID, nil
}

func (p *PostgresStorage) Ping(ctx context.Context) error {
	const op = "storage.Ping"

	if err := p.db.Ping(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *PostgresStorage) Close() {
	p.db.Close()
}
