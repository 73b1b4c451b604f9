package identity

import (
	"context"

	"github.com/grapl-security/grapl-core/internal/errors"
	"github.com/grapl-security/grapl-core/internal/graphdesc"
	"github.com/grapl-security/grapl-core/internal/uid"
)

// AssetResolver maps an asset_id or hostname to the Asset node's uid.
// Strategies with PrimaryKeyRequiresAssetID (spec §3) call this to fold the
// asset into their pseudo_key/canonical_key, since a PID or file path is
// only unique per host.
type AssetResolver interface {
	ResolveAsset(ctx context.Context, tenantID string, node *graphdesc.NodeDescription) (uid.Uid, error)
}

// StaticAssetResolver resolves assets the same way any other Static-strategy
// node resolves: by canonical_key over asset_id (falling back to hostname).
type StaticAssetResolver struct {
	store StaticStore
	alloc func(ctx context.Context) (uid.Uid, error)
}

func NewStaticAssetResolver(store StaticStore, alloc func(ctx context.Context) (uid.Uid, error)) *StaticAssetResolver {
	return &StaticAssetResolver{store: store, alloc: alloc}
}

func (r *StaticAssetResolver) ResolveAsset(ctx context.Context, tenantID string, node *graphdesc.NodeDescription) (uid.Uid, error) {
	assetID, _ := node.Property(graphdesc.PropAssetID)
	hostname, _ := node.Property(graphdesc.PropHostname)
	if assetID.Str == "" && hostname.Str == "" {
		return uid.Nil, errors.Persistentf("identity: node requires asset_id or hostname to resolve its asset")
	}

	identifier := assetID.Str
	if identifier == "" {
		identifier = hostname.Str
	}

	key, err := graphdesc.PseudoKey(tenantID, graphdesc.NodeTypeAsset, []string{identifier})
	if err != nil {
		return uid.Nil, errors.WrapPersistent(err, "identity: hashing asset canonical key")
	}
	return r.store.ResolveOrCreate(ctx, tenantID, key, r.alloc)
}

// NoopAssetResolver always returns uid.Nil with no error: useful in tests for
// node types whose strategy doesn't actually require an asset.
type NoopAssetResolver struct{}

func (NoopAssetResolver) ResolveAsset(context.Context, string, *graphdesc.NodeDescription) (uid.Uid, error) {
	return uid.Nil, nil
}
