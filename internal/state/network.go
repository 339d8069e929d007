package state

import (
	"context"
	"encoding/json"
	"time"

	"github.com/five82/sentinel/internal/api"
)

// NetworkStats is the network dashboard record.
type NetworkStats struct {
	TotalFlows        int
	MaliciousFlows    int
	LastMaliciousTime *time.Time
	LastMaliciousFlow api.FlowDetail
}

type (
	NetworkSnapshot = Snapshot[NetworkStats, api.PacketRow]
	NetworkStore    = Store[NetworkStats, api.PacketRow]
)

// PacketPager fetches pages of classified flows. MaliciousOnly in the query
// selects the malicious-only listing.
type PacketPager interface {
	FetchPackets(ctx context.Context, query api.PageQuery) (api.PageResponse[api.PacketRow], error)
}

// NewNetworkStore returns the store for the network domain.
func NewNetworkStore(pager PacketPager, opts ...Option) *NetworkStore {
	return newStore("network", DecodeNetworkStats, pager.FetchPackets, opts)
}

// DecodeNetworkStats builds a NetworkStats record from a raw payload.
func DecodeNetworkStats(payload json.RawMessage) (NetworkStats, error) {
	var wire api.NetworkStats
	if err := decodeObject(payload, &wire); err != nil {
		return NetworkStats{}, err
	}
	stats := NetworkStats{
		TotalFlows:        nonNegative(wire.TotalFlows),
		MaliciousFlows:    nonNegative(wire.MaliciousFlows),
		LastMaliciousTime: optionalTime(wire.LastMaliciousTime),
	}
	if wire.LastMaliciousFlow != nil {
		stats.LastMaliciousFlow = *wire.LastMaliciousFlow
	}
	return stats, nil
}
