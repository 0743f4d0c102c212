package handlers

import (
	"context"
	"errors"
	"log"

	"github.com/loiht2/ai-vision-portal/config"
	"github.com/loiht2/ai-vision-portal/repository"
	"github.com/loiht2/ai-vision-portal/security"
)

const (
	seedUsername = "admin"
	seedPassword = "admin123"
)

// SeedAdmin creates the default admin account when it does not exist yet
func SeedAdmin(ctx context.Context, store Store) error {
	_, err := store.GetUserByUsername(ctx, seedUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	hashed, err := security.HashPassword(seedPassword)
	if err != nil {
		return err
	}
	if err := store.CreateUser(ctx, &config.User{Username: seedUsername, HashedPassword: hashed, IsActive: true}); err != nil {
		return err
	}
	log.Printf("Seeded default user %q", seedUsername)
	return nil
}
