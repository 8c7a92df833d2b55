package main

import (
	"context"
	"errors"
	"sync"

	"github.com/kurabu/authflow"
)

var errNoUser = errors.New("no user for key")

// memRepository is an in-process authflow.UserRepository. Login is not
// exercised by the load test, so LoginLookup always fails.
type memRepository struct {
	mu     sync.Mutex
	emails map[string]struct{}
	users  map[string]authflow.UserTokens
}

func newMemRepository() *memRepository {
	return &memRepository{
		emails: map[string]struct{}{},
		users:  map[string]authflow.UserTokens{},
	}
}

func (r *memRepository) EmailExists(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.emails[email]
	return ok, nil
}

func (r *memRepository) CreateUser(_ context.Context, in authflow.CreateUserInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.emails[in.Email]; ok {
		return authflow.ErrMailUsed
	}
	r.emails[in.Email] = struct{}{}
	r.users[in.SessionKey] = authflow.UserTokens{
		ID:           in.SessionKey,
		Email:        in.Email,
		AccessToken:  in.AccessToken,
		RefreshToken: in.RefreshToken,
	}
	return nil
}

func (r *memRepository) UpdateTokens(_ context.Context, key, access, refresh string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[key]
	if !ok {
		return errNoUser
	}
	u.AccessToken, u.RefreshToken = access, refresh
	r.users[key] = u
	return nil
}

func (r *memRepository) LoginLookup(context.Context, string, string) (authflow.UserTokens, error) {
	return authflow.UserTokens{}, authflow.ErrAuth
}

func (r *memRepository) TokensFromKey(_ context.Context, key string) (authflow.UserTokens, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[key]
	if !ok {
		return authflow.UserTokens{}, errNoUser
	}
	return u, nil
}
