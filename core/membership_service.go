package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/regionwatch/internal/logging"
	"github.com/signalsfoundry/regionwatch/model"
)

// Publisher delivers the service's output to consumers. Implementations own
// all I/O; the service never retries a failed publish.
type Publisher interface {
	PublishRegion(ctx context.Context, name string) error
	PublishMarker(ctx context.Context, m Marker) error
}

// MetricsRecorder receives classification and broadcast observations.
type MetricsRecorder interface {
	ObserveClassification(result MembershipResult, elapsed time.Duration)
	ObserveBroadcast(markers int)
}

type multiPublisher []Publisher

// Publishers fans every publish out to each non-nil publisher in order. All
// publishers are attempted; their errors are joined.
func Publishers(pubs ...Publisher) Publisher {
	out := make(multiPublisher, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (m multiPublisher) PublishRegion(ctx context.Context, name string) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishRegion(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiPublisher) PublishMarker(ctx context.Context, mk Marker) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishMarker(ctx, mk); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MembershipService turns position events into region-name messages and
// timer ticks into marker broadcasts.
//
// Semantics:
//   - OnPosition publishes exactly one region message per call, even when the
//     result repeats the previous one. Nothing is remembered between calls.
//   - BroadcastAllVisuals publishes outline then label for every slot, in
//     slot order.
//
// The service holds only references to immutable collaborators, so it may be
// called from several goroutines if the transport chooses to.
type MembershipService struct {
	store   *RegionStore
	pub     Publisher
	log     logging.Logger
	metrics MetricsRecorder
	now     func() time.Time
}

// ServiceOption customises a MembershipService.
type ServiceOption func(*MembershipService)

// WithLogger sets the service logger.
func WithLogger(l logging.Logger) ServiceOption {
	return func(s *MembershipService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetricsRecorder attaches a metrics sink.
func WithMetricsRecorder(r MetricsRecorder) ServiceOption {
	return func(s *MembershipService) { s.metrics = r }
}

// WithClock overrides the clock used to time classifications.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *MembershipService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMembershipService binds a service to a built store and a publisher.
func NewMembershipService(store *RegionStore, pub Publisher, opts ...ServiceOption) (*MembershipService, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: region store is nil", ErrConfiguration)
	}
	if pub == nil {
		return nil, errors.New("membership service: publisher is nil")
	}
	s := &MembershipService{
		store: store,
		pub:   pub,
		log:   logging.Noop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Store returns the region store the service classifies against.
func (s *MembershipService) Store() *RegionStore { return s.store }

// OnPosition classifies p and publishes the region name, or UnknownRegion.
// The classification result is returned even when publishing fails.
func (s *MembershipService) OnPosition(ctx context.Context, p model.Point) (MembershipResult, error) {
	start := s.now()
	result := s.store.Classify(p)
	if s.metrics != nil {
		s.metrics.ObserveClassification(result, s.now().Sub(start))
	}

	log := logging.LoggerFromContext(ctx, s.log)
	log.Debug(ctx, "position classified",
		logging.Float64("x", p.X),
		logging.Float64("y", p.Y),
		logging.String("region", result.Name()),
	)

	if err := s.pub.PublishRegion(ctx, result.Name()); err != nil {
		log.Warn(ctx, "publish region failed", logging.String("region", result.Name()), logging.Err(err))
		return result, fmt.Errorf("publish region %q: %w", result.Name(), err)
	}
	return result, nil
}

// BroadcastAllVisuals publishes the outline and label of every region in slot
// order. A failed publish is logged and the broadcast continues; the joined
// errors are returned.
func (s *MembershipService) BroadcastAllVisuals(ctx context.Context) error {
	var (
		errs      []error
		published int
	)
	for slot := 0; slot < s.store.Count(); slot++ {
		payload, err := s.store.Visualization(slot)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, m := range payload.Markers() {
			if err := s.pub.PublishMarker(ctx, m); err != nil {
				s.log.Warn(ctx, "publish marker failed",
					logging.String("namespace", m.Namespace),
					logging.Int("id", m.ID),
					logging.Err(err),
				)
				errs = append(errs, fmt.Errorf("publish marker %s/%d: %w", m.Namespace, m.ID, err))
				continue
			}
			published++
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveBroadcast(published)
	}
	s.log.Debug(ctx, "region markers broadcast",
		logging.Int("regions", s.store.Count()),
		logging.Int("markers", published),
	)
	return errors.Join(errs...)
}
