// Package integrationconfig stores IntegrationConfig(user, destination)
// rows (spec §3): per-user, per-destination enablement and sealed
// credentials, decrypted on demand by the sync worker via crypto.Vault.
package integrationconfig

import (
	"context"

	"github.com/gottino/rmirror-cloud/domain"
)

type Store interface {
	Get(ctx context.Context, userID, destination string) (*domain.IntegrationConfig, error)
	Upsert(ctx context.Context, cfg *domain.IntegrationConfig) error
	ListEnabledForUser(ctx context.Context, userID string) ([]*domain.IntegrationConfig, error)
	RecordUsage(ctx context.Context, userID, destination string) error
}
