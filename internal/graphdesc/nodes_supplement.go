package graphdesc

// Asset and Process node constructors. These are not general-purpose schema
// management (that's Component D) — they capture the two node shapes that
// recur across every generator in the corpus (spec §4.A supplement:
// per-node-type session key derivation and asset shape validation), so
// generator plugins don't each reinvent field naming and strategy wiring.

const (
	NodeTypeAsset   = "Asset"
	NodeTypeProcess = "Process"

	PropAssetID   PropertyName = "asset_id"
	PropHostname  PropertyName = "hostname"

	PropProcessID          PropertyName = "process_id"
	PropProcessName        PropertyName = "process_name"
	PropCreatedTimestamp   PropertyName = "created_timestamp"
	PropLastSeenTimestamp  PropertyName = "last_seen_timestamp"
	PropTerminatedTimestamp PropertyName = "terminated_timestamp"
)

// NewAssetNode builds the Asset node shape: identified by Static strategy on
// asset_id, requiring neither hostname nor further asset resolution (an
// Asset node is itself the anchor other Static strategies key off of).
// Either assetID or hostname must be non-empty — at least one must identify
// the host, mirroring the original asset model's invariant.
func NewAssetNode(assetID, hostname string, lastSeenTimestamp uint64) (*NodeDescription, error) {
	if assetID == "" && hostname == "" {
		return nil, errAssetNeedsIdentity
	}
	n := NewNodeDescription(NodeTypeAsset, StaticStrategy(false, PropAssetID))
	if assetID != "" {
		n.SetProperty(PropAssetID, NewImmutableString(assetID))
	}
	if hostname != "" {
		n.SetProperty(PropHostname, NewImmutableString(hostname))
	}
	if lastSeenTimestamp != 0 {
		n.SetProperty(PropLastSeenTimestamp, NewIncrementOnlyU64(lastSeenTimestamp))
	}
	return n, nil
}

// NewProcessNode builds the Process node shape under Session strategy: a
// process_id is only unique for the lifetime of the OS process, so identity
// is resolved by (pid, asset) within a session's time window, requiring an
// asset_id to disambiguate hosts sharing the PID space.
func NewProcessNode(pid int64, processName string, created, lastSeen uint64) *NodeDescription {
	n := NewNodeDescription(NodeTypeProcess, SessionStrategy(
		true,
		PropCreatedTimestamp, PropLastSeenTimestamp, PropTerminatedTimestamp,
		[]PropertyName{PropProcessID},
		nil,
	))
	n.SetProperty(PropProcessID, NewImmutableI64(pid))
	if processName != "" {
		n.SetProperty(PropProcessName, NewImmutableString(processName))
	}
	if created != 0 {
		n.SetProperty(PropCreatedTimestamp, NewImmutableU64(created))
	}
	if lastSeen != 0 {
		n.SetProperty(PropLastSeenTimestamp, NewIncrementOnlyU64(lastSeen))
	}
	return n
}

var errAssetNeedsIdentity = &assetIdentityError{}

type assetIdentityError struct{}

func (*assetIdentityError) Error() string {
	return "graphdesc: asset node requires asset_id or hostname"
}
