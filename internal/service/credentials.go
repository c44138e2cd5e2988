package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cabinetdiet/cabinet/internal/model"
	"github.com/cabinetdiet/cabinet/internal/store"
)

const defaultUsername = "admin"

// BootstrapFunc receives the generated plaintext password of a freshly
// created identity. It is called at most once per identity.
type BootstrapFunc func(username, password string)

// CredentialOptions configures the identity created on first access.
type CredentialOptions struct {
	Username string
	// InitialPassword is used instead of a generated one when set. It is
	// never reported through OnBootstrap.
	InitialPassword string
	OnBootstrap     BootstrapFunc
	Now             func() time.Time
}

// CredentialStore owns the single admin identity.
type CredentialStore struct {
	repo   store.IdentityRepository
	hasher *Hasher
	opts   CredentialOptions

	mu sync.Mutex // serializes bootstrap and password writes
}

func NewCredentialStore(repo store.IdentityRepository, hasher *Hasher, opts CredentialOptions) *CredentialStore {
	if opts.Username == "" {
		opts.Username = defaultUsername
	}
	if opts.OnBootstrap == nil {
		opts.OnBootstrap = printBootstrap
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &CredentialStore{repo: repo, hasher: hasher, opts: opts}
}

// Admin returns the identity, creating it when none exists yet.
func (c *CredentialStore) Admin(ctx context.Context) (*model.Admin, error) {
	admin, err := c.repo.LoadAdmin(ctx)
	if err == nil {
		return admin, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load admin: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another caller may have won the race.
	admin, err = c.repo.LoadAdmin(ctx)
	if err == nil {
		return admin, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load admin: %w", err)
	}
	return c.bootstrap(ctx)
}

func (c *CredentialStore) bootstrap(ctx context.Context) (*model.Admin, error) {
	password := c.opts.InitialPassword
	generated := password == ""
	if generated {
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate password: %w", err)
		}
		password = hex.EncodeToString(buf)
	}
	hash, err := c.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	admin := &model.Admin{
		ID:           1,
		Username:     c.opts.Username,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		CreatedAt:    c.opts.Now().UTC(),
	}
	if err := c.repo.SaveAdmin(ctx, admin); err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	if generated {
		c.opts.OnBootstrap(admin.Username, password)
	}
	return admin, nil
}

// UpdatePassword replaces the stored hash. The last writer wins.
func (c *CredentialStore) UpdatePassword(ctx context.Context, hash string) error {
	admin, err := c.Admin(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.opts.Now().UTC()
	admin.PasswordHash = hash
	admin.UpdatedAt = &now
	if err := c.repo.SaveAdmin(ctx, admin); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func printBootstrap(username, password string) {
	fmt.Fprintln(os.Stderr, "========================================")
	fmt.Fprintf(os.Stderr, "Temporary admin password for %q: %s\n", username, password)
	fmt.Fprintln(os.Stderr, "Change it now with 'cabinet admin passwd' or from the admin panel,")
	fmt.Fprintln(os.Stderr, "or set ADMIN_INITIAL_PASSWORD before the first start.")
	fmt.Fprintln(os.Stderr, "========================================")
}
