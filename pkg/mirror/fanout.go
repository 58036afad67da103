package mirror

import (
	"context"
	"errors"
	"fmt"
)

// Fanout dispatches published events to all configured mirrors.
type Fanout struct {
	mirrors []Mirror
}

// NewFanout builds a dispatcher that fans events out across mirrors.
func NewFanout(mirrors []Mirror) *Fanout {
	cp := make([]Mirror, 0, len(mirrors))
	for _, m := range mirrors {
		if m == nil {
			continue
		}
		cp = append(cp, m)
	}
	return &Fanout{mirrors: cp}
}

// Send forwards the event to every registered mirror. It returns the number
// of mirrors that handled the event and the joined failures; the caller only
// logs these, mirrors never gate the pipeline.
func (f *Fanout) Send(ctx context.Context, evt PublishedEvent) (int, error) {
	if f == nil || len(f.mirrors) == 0 {
		return 0, nil
	}

	var errs []error
	successful := 0
	for _, m := range f.mirrors {
		if err := m.Send(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s mirror[%s]: %w", m.Type(), m.ID(), err))
		} else {
			successful++
		}
	}
	return successful, errors.Join(errs...)
}

// Size returns the number of active mirrors.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.mirrors)
}
