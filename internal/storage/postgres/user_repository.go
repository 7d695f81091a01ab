package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/cityride/dispatch/internal/domain/user"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (ur *UserRepository) Create(ctx context.Context, account *user.Account) error {
	_, err := ur.db.ExecContext(ctx, `
		INSERT INTO accounts (
			id, name, email, password_hash, role, blocked,
			vehicle_make, vehicle_plate, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, account.ID, account.Name, strings.ToLower(account.Email),
		account.PasswordHash, string(account.Role), account.Blocked,
		account.VehicleMake, account.VehiclePlate, account.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return user.ErrEmailTaken
	}
	return err
}

func (ur *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.Account, error) {
	return ur.get(ctx, `WHERE id = $1`, id)
}

func (ur *UserRepository) GetByEmail(ctx context.Context, email string) (*user.Account, error) {
	return ur.get(ctx, `WHERE email = $1`, strings.ToLower(email))
}

func (ur *UserRepository) get(ctx context.Context, where string, arg interface{}) (*user.Account, error) {
	row := ur.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, blocked,
		       vehicle_make, vehicle_plate, created_at
		FROM accounts `+where, arg)

	var a user.Account
	var rawRole string
	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.PasswordHash, &rawRole, &a.Blocked,
		&a.VehicleMake, &a.VehiclePlate, &a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.Role, err = user.ParseRole(rawRole)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (ur *UserRepository) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) error {
	res, err := ur.db.ExecContext(ctx, `
		UPDATE accounts SET blocked = $1 WHERE id = $2
	`, blocked, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (ur *UserRepository) CountByRole(ctx context.Context) (map[user.Role]int, error) {
	rows, err := ur.db.QueryContext(ctx, `
		SELECT role, COUNT(*) FROM accounts GROUP BY role
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[user.Role]int)
	for rows.Next() {
		var raw string
		var n int
		if err := rows.Scan(&raw, &n); err != nil {
			return nil, err
		}
		role, err := user.ParseRole(raw)
		if err != nil {
			return nil, err
		}
		out[role] = n
	}
	return out, rows.Err()
}
