package grpcapi

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/signalsfoundry/regionwatch/core"
	"github.com/signalsfoundry/regionwatch/internal/hub"
	"github.com/signalsfoundry/regionwatch/internal/logging"
	"github.com/signalsfoundry/regionwatch/internal/markerwire"
	"github.com/signalsfoundry/regionwatch/internal/observability"
)

// DropRecorder counts position events dropped before classification.
type DropRecorder interface {
	ObserveDropped(reason string)
}

// Service implements RegionMonitorServer over a MembershipService. Streaming
// RPCs read from the hubs the service publishes into.
type Service struct {
	membership *core.MembershipService
	hubs       *hub.Publisher
	drops      DropRecorder
	log        logging.Logger
	buffer     int
}

var _ RegionMonitorServer = (*Service)(nil)

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithDropRecorder counts malformed poses.
func WithDropRecorder(r DropRecorder) ServiceOption {
	return func(s *Service) { s.drops = r }
}

// WithStreamBuffer sets the per-stream queue depth.
func WithStreamBuffer(n int) ServiceOption {
	return func(s *Service) { s.buffer = n }
}

// NewService builds a Service. hubs must be among the membership service's
// publishers for the watch streams to see anything.
func NewService(membership *core.MembershipService, hubs *hub.Publisher, log logging.Logger, opts ...ServiceOption) *Service {
	if log == nil {
		log = logging.Noop()
	}
	s := &Service{
		membership: membership,
		hubs:       hubs,
		log:        log,
		buffer:     hub.DefaultBuffer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReportPose classifies the pose and returns the region name. Publishing
// failures are logged by the membership service but do not fail the call;
// the caller still gets its classification.
func (s *Service) ReportPose(ctx context.Context, in *structpb.Struct) (*wrapperspb.StringValue, error) {
	log := logging.LoggerFromContext(ctx, s.log)

	p, err := core.PositionFromFields(in.AsMap())
	if err != nil {
		if s.drops != nil {
			s.drops.ObserveDropped(observability.DropMalformed)
		}
		log.Warn(ctx, "dropping malformed pose", logging.Err(err))
		return nil, ToStatusError(err)
	}

	result, err := s.membership.OnPosition(ctx, p)
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("region", result.Name()))
	if err != nil {
		log.Warn(ctx, "region publish incomplete", logging.String("region", result.Name()), logging.Err(err))
	}
	return wrapperspb.String(result.Name()), nil
}

// ListRegions returns every region in slot order.
func (s *Service) ListRegions(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	regions := s.membership.Store().Regions()
	items := make([]any, 0, len(regions))
	for slot, r := range regions {
		points := make([]any, 0, len(r.Vertices))
		for _, v := range r.Vertices {
			points = append(points, []any{v.X, v.Y})
		}
		items = append(items, map[string]any{
			"slot":   slot,
			"name":   r.Name,
			"points": points,
		})
	}
	list, err := structpb.NewList(items)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return list, nil
}

// WatchRegion streams region names as they are published.
func (s *Service) WatchRegion(_ *emptypb.Empty, stream grpc.ServerStreamingServer[wrapperspb.StringValue]) error {
	ch, cancel := s.hubs.Regions.Subscribe(s.buffer)
	defer cancel()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ToStatusError(ctx.Err())
		case name, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.Send(wrapperspb.String(name)); err != nil {
				return err
			}
		}
	}
}

// WatchMarkers sends every region's outline and label, then relays each
// broadcast marker.
func (s *Service) WatchMarkers(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	// Subscribe before sending the layout so no broadcast falls in between.
	ch, cancel := s.hubs.Markers.Subscribe(s.buffer)
	defer cancel()

	ctx := stream.Context()
	for _, payload := range s.membership.Store().Visualizations() {
		for _, m := range payload.Markers() {
			if err := sendMarker(stream, m); err != nil {
				return err
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ToStatusError(ctx.Err())
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			if err := sendMarker(stream, m); err != nil {
				return err
			}
		}
	}
}

func sendMarker(stream grpc.ServerStreamingServer[structpb.Struct], m core.Marker) error {
	msg, err := markerwire.ToStruct(m)
	if err != nil {
		return ToStatusError(errors.Join(markerwire.ErrMalformedMarker, err))
	}
	return stream.Send(msg)
}
