package publish

import (
	"context"

	"github.com/google/uuid"

	"dealcast/internal/channel"
	"dealcast/internal/format"
	"dealcast/pkg/logx"
)

// RunCarousel publishes a multi-media post: one container per item, all
// of which must reach READY before the single group container is created
// and published. Child containers are staged and awaited in order; any
// child that fails or times out aborts the whole job with that child's
// terminal state.
func (m *Machine) RunCarousel(ctx context.Context, api channel.CarouselAPI, items []format.Payload, caption format.Payload) Result {
	res := Result{JobID: uuid.NewString(), State: StateInit}
	log := m.opt.Log.With(logx.String("job", res.JobID))

	if len(items) == 0 {
		res.State = StateFailed
		res.Err = channel.ErrEmptyCarousel
		return res
	}

	children := make([]string, 0, len(items))
	for _, item := range items {
		containerID, err := api.CreateContainer(ctx, item)
		if err != nil {
			res.State = StateFailed
			res.Err = err
			return res
		}
		res.State = StateContainerCreated
		children = append(children, containerID)
	}
	log.Debug("carousel children created", logx.Int("children", len(children)))

	for _, containerID := range children {
		if st, err := m.awaitContainer(ctx, api, containerID, &res); err != nil || st != StateReady {
			return res
		}
	}

	groupID, err := api.CreateGroup(ctx, children, caption)
	if err != nil {
		res.State = StateFailed
		res.Err = err
		return res
	}

	remoteID, err := api.Publish(ctx, groupID)
	if err != nil {
		res.State = StateFailed
		res.Err = err
		return res
	}
	res.State = StatePublished
	res.RemoteID = remoteID
	return res
}
