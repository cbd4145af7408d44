package minter

import (
	"context"

	"github.com/dyluth/minsta/pkg/registry"
)

// RegistryStore adapts a registry.Client to Store.
type RegistryStore struct {
	client *registry.Client
}

var _ Store = (*RegistryStore)(nil)

// NewRegistryStore wraps client.
func NewRegistryStore(client *registry.Client) *RegistryStore {
	return &RegistryStore{client: client}
}

func (s *RegistryStore) LatestMinter(ctx context.Context, target ServiceID) (AccountID, bool, error) {
	minter, err := s.client.LatestMinter(ctx, string(target))
	if err != nil {
		if registry.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return AccountID(minter), true, nil
}

func (s *RegistryStore) SetLatestMinter(ctx context.Context, target ServiceID, minter AccountID) error {
	return s.client.SetLatestMinter(ctx, string(target), string(minter))
}
