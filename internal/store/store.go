package store

import (
	"context"
	"errors"

	"github.com/me/ecswait/pkg/model"
)

// Sentinel errors returned by UpdateWait.
var (
	ErrNotFound      = errors.New("wait not found")
	ErrStateConflict = errors.New("wait state changed")
)

// Store defines the persistence layer for waits.
type Store interface {
	CreateWait(ctx context.Context, w *model.Wait) error
	GetWait(ctx context.Context, id string) (*model.Wait, error)
	ListWaits(ctx context.Context, opts model.ListOptions) ([]*model.Wait, int, error)
	// UpdateWait writes w only if the stored state still equals expected.
	// Otherwise it returns ErrStateConflict, or ErrNotFound for an
	// unknown id.
	UpdateWait(ctx context.Context, w *model.Wait, expected model.WaitState) error
	GetWaitsByState(ctx context.Context, state model.WaitState) ([]*model.Wait, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
