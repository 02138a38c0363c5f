package accountrepository

import (
	"context"

	"github.com/superbrain63/superbrain-ai/internal/domain"
)

// UpdateFunc computes the next state of an account from its current state.
// Returning an error aborts the update without writing anything.
type UpdateFunc func(current domain.Account) (domain.Account, error)

type AccountRepository interface {
	// GetAccount returns domain.ErrAccountNotFound for users that have never interacted
	GetAccount(ctx context.Context, userID string) (domain.Account, error)

	// UpdateAccount runs update with exclusive access to the account of userID,
	// creating the default account first if there is none, and persists the result.
	//
	// If update fails, the current account is returned together with the error.
	UpdateAccount(ctx context.Context, userID string, update UpdateFunc) (domain.Account, error)

	// PutAccount overwrites the stored account unconditionally.
	// Only the administrative repair path writes through this.
	PutAccount(ctx context.Context, account domain.Account) (domain.Account, error)
}
