package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/cityride/dispatch/internal/domain/user"
)

// UserRepository is an in-memory user.Repository.
type UserRepository struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]user.Account
	byEmail  map[string]uuid.UUID
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		accounts: make(map[uuid.UUID]user.Account),
		byEmail:  make(map[string]uuid.UUID),
	}
}

func (ur *UserRepository) Create(_ context.Context, account *user.Account) error {
	ur.mu.Lock()
	defer ur.mu.Unlock()

	email := strings.ToLower(account.Email)
	if _, taken := ur.byEmail[email]; taken {
		return user.ErrEmailTaken
	}
	ur.accounts[account.ID] = *account
	ur.byEmail[email] = account.ID
	return nil
}

func (ur *UserRepository) GetByID(_ context.Context, id uuid.UUID) (*user.Account, error) {
	ur.mu.Lock()
	defer ur.mu.Unlock()

	a, ok := ur.accounts[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &a, nil
}

func (ur *UserRepository) GetByEmail(_ context.Context, email string) (*user.Account, error) {
	ur.mu.Lock()
	defer ur.mu.Unlock()

	id, ok := ur.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, user.ErrNotFound
	}
	a := ur.accounts[id]
	return &a, nil
}

func (ur *UserRepository) SetBlocked(_ context.Context, id uuid.UUID, blocked bool) error {
	ur.mu.Lock()
	defer ur.mu.Unlock()

	a, ok := ur.accounts[id]
	if !ok {
		return user.ErrNotFound
	}
	a.Blocked = blocked
	ur.accounts[id] = a
	return nil
}

func (ur *UserRepository) CountByRole(_ context.Context) (map[user.Role]int, error) {
	ur.mu.Lock()
	defer ur.mu.Unlock()

	out := make(map[user.Role]int)
	for _, a := range ur.accounts {
		out[a.Role]++
	}
	return out, nil
}
