// Package registry owns the mapping from asset id to current holder and
// immutable metadata location. It is the leaf component of the ledger:
// custody moves only through Transfer, and the catalogue is minted exactly
// once at initialization.
package registry

import (
	"fmt"
	"strconv"

	"github.com/boogiefi/marketd/internal/domain"
)

// Registry is the asset registry. It carries no locking: callers guarantee
// serial execution of mutating operations.
type Registry struct {
	assets []domain.Asset
	minted bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Mint creates count assets with sequential ids starting at 0, each held by
// holder and pointing at baseURI + id. It can be called once; subsequent
// calls fail with domain.ErrAlreadyMinted.
func (r *Registry) Mint(count int, baseURI string, holder domain.Custody) ([]uint64, error) {
	if r.minted {
		return nil, domain.ErrAlreadyMinted
	}
	if count <= 0 {
		return nil, fmt.Errorf("registry: mint count must be positive, got %d", count)
	}
	if holder.IsZero() {
		return nil, fmt.Errorf("registry: mint holder is unset")
	}

	ids := make([]uint64, count)
	r.assets = make([]domain.Asset, count)
	for i := 0; i < count; i++ {
		id := uint64(i)
		ids[i] = id
		r.assets[i] = domain.Asset{
			ID:          id,
			Holder:      holder,
			MetadataURI: baseURI + strconv.FormatUint(id, 10),
		}
	}
	r.minted = true
	return ids, nil
}

// Restore rebuilds the registry from persisted holders. Assets are assumed
// to have been minted with sequential ids from 0.
func (r *Registry) Restore(baseURI string, holders []domain.Custody) error {
	if r.minted {
		return domain.ErrAlreadyMinted
	}
	r.assets = make([]domain.Asset, len(holders))
	for i, h := range holders {
		if h.IsZero() {
			return fmt.Errorf("registry: restore holder %d is unset", i)
		}
		id := uint64(i)
		r.assets[i] = domain.Asset{
			ID:          id,
			Holder:      h,
			MetadataURI: baseURI + strconv.FormatUint(id, 10),
		}
	}
	r.minted = true
	return nil
}

// OwnerOf returns the current holder of the asset.
func (r *Registry) OwnerOf(id uint64) (domain.Custody, error) {
	a, err := r.asset(id)
	if err != nil {
		return domain.Custody{}, err
	}
	return a.Holder, nil
}

// MetadataURI returns the asset's immutable metadata location.
func (r *Registry) MetadataURI(id uint64) (string, error) {
	a, err := r.asset(id)
	if err != nil {
		return "", err
	}
	return a.MetadataURI, nil
}

// Transfer reassigns the asset's holder. It fails with domain.ErrNotHolder
// when from does not currently hold the asset; there are no other side
// effects.
func (r *Registry) Transfer(id uint64, from, to domain.Custody) error {
	a, err := r.asset(id)
	if err != nil {
		return err
	}
	if a.Holder != from {
		return fmt.Errorf("registry: asset %d held by %s, not %s: %w",
			id, a.Holder, from, domain.ErrNotHolder)
	}
	if to.IsZero() {
		return fmt.Errorf("registry: transfer to unset custody")
	}
	a.Holder = to
	return nil
}

// BalanceOf returns the number of assets currently held by the account.
func (r *Registry) BalanceOf(holder domain.Custody) int {
	n := 0
	for i := range r.assets {
		if r.assets[i].Holder == holder {
			n++
		}
	}
	return n
}

// Count returns the number of minted assets.
func (r *Registry) Count() int {
	return len(r.assets)
}

func (r *Registry) asset(id uint64) (*domain.Asset, error) {
	if id >= uint64(len(r.assets)) {
		return nil, fmt.Errorf("registry: asset %d: %w", id, domain.ErrUnknownAsset)
	}
	return &r.assets[id], nil
}
