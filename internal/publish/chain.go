package publish

import (
	"context"
	"fmt"

	"dealcast/internal/channel"
	"dealcast/internal/format"
)

// RunChain publishes segments as a reply chain: each segment replies to
// the previous segment's remote id, injected immediately before its
// submit so a mid-chain failure never threads a later segment onto a
// stale parent. The chain stops at the first segment that does not reach
// PUBLISHED; results for completed segments are still returned.
func (m *Machine) RunChain(ctx context.Context, api channel.SyncAPI, segments []format.Payload) ([]Result, error) {
	results := make([]Result, 0, len(segments))

	var parent string
	for i, seg := range segments {
		seg.ReplyTo = parent
		res := m.RunSync(ctx, api, seg)
		results = append(results, res)
		if !res.Succeeded() {
			return results, fmt.Errorf("chain segment %d of %d: %w", i+1, len(segments), res.Err)
		}
		parent = res.RemoteID
	}
	return results, nil
}
