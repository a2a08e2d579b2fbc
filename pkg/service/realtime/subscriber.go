package realtime

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gridcore/pkg/domain/interfaces"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/domain/types"
	"github.com/secmon-lab/gridcore/pkg/utils/logging"
)

// Subscriber applies the record change feed of one table to a live table
type Subscriber struct {
	url        string
	sink       interfaces.ChangeSink
	retryDelay time.Duration
}

type Option func(*Subscriber)

// WithRetryDelay sets the pause before reconnecting after the feed drops.
// Zero disables reconnection.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Subscriber) {
		s.retryDelay = d
	}
}

// New creates a subscriber of the websocket feed at url
func New(url string, sink interfaces.ChangeSink, opts ...Option) *Subscriber {
	s := &Subscriber{
		url:        url,
		sink:       sink,
		retryDelay: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run follows the feed until ctx is done. After a reconnect the table is
// reloaded, since changes may have been missed meanwhile.
func (s *Subscriber) Run(ctx context.Context) error {
	reconnected := false
	for {
		err := s.follow(ctx, reconnected)
		if ctx.Err() != nil {
			return nil
		}
		if s.retryDelay <= 0 {
			return err
		}

		logging.From(ctx).Warn("record feed dropped, reconnecting",
			slog.String("url", s.url),
			slog.Duration("delay", s.retryDelay),
			logging.ErrAttr(err),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.retryDelay):
		}
		reconnected = true
	}
}

func (s *Subscriber) follow(ctx context.Context, reload bool) error {
	conn, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		return goerr.Wrap(model.ErrTransport, "failed to connect to record feed",
			goerr.V(model.EndpointKey, s.url), goerr.V("cause", err.Error()))
	}
	defer conn.CloseNow()

	if reload {
		if err := s.sink.Reload(ctx); err != nil {
			logging.From(ctx).Warn("reload after reconnect failed", logging.ErrAttr(err))
		}
	}

	for {
		var change model.Change
		if err := wsjson.Read(ctx, conn, &change); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return goerr.Wrap(err, "failed to read record feed", goerr.V(model.EndpointKey, s.url))
		}
		if err := Apply(ctx, s.sink, change); err != nil {
			logging.From(ctx).Warn("failed to apply change",
				slog.String("type", change.Type.String()),
				slog.String("key", change.RecordKey),
				logging.ErrAttr(err),
			)
		}
	}
}

// Apply hands one change to sink. Removing a record the table does not show
// is not an error.
func Apply(ctx context.Context, sink interfaces.ChangeSink, change model.Change) error {
	switch change.Type {
	case types.ChangeRecordAdded:
		return sink.AddRecord(change.Record)
	case types.ChangeRecordUpdated:
		err := sink.UpdateRecord(change.Record)
		if errors.Is(err, model.ErrRecordNotFound) {
			return nil
		}
		return err
	case types.ChangeRecordDeleted:
		err := sink.RemoveRecord(change.RecordKey)
		if errors.Is(err, model.ErrRecordNotFound) {
			return nil
		}
		return err
	case types.ChangeRefresh:
		return sink.Reload(ctx)
	default:
		return goerr.New("unknown change type", goerr.V("type", change.Type))
	}
}
