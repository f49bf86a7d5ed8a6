package grpcapi

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/signalsfoundry/regionwatch/core"
	"github.com/signalsfoundry/regionwatch/internal/markerwire"
	"github.com/signalsfoundry/regionwatch/model"
)

// Client calls the RegionMonitor service.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// DefaultDialOptions are the dial options Dial uses: plaintext transport and
// OTel client instrumentation.
func DefaultDialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// Dial creates a client for addr. Extra options are appended to
// DefaultDialOptions.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	conn, err := grpc.NewClient(addr, append(DefaultDialOptions(), opts...)...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{cc: conn, conn: conn}, nil
}

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close closes the connection when the client owns it.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// ReportPose sends a raw pose document.
func (c *Client) ReportPose(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, ReportPoseMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ReportPosition sends p as a stamped pose and returns the region name.
func (c *Client) ReportPosition(ctx context.Context, p model.Point, opts ...grpc.CallOption) (string, error) {
	in, err := structpb.NewStruct(map[string]any{
		"header": map[string]any{"frame_id": core.MapFrame},
		"pose": map[string]any{
			"position": map[string]any{"x": p.X, "y": p.Y, "z": 0.0},
		},
	})
	if err != nil {
		return "", err
	}
	out, err := c.ReportPose(ctx, in, opts...)
	if err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// ListRegions returns the raw region list.
func (c *Client) ListRegions(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, ListRegionsMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Regions returns the server's regions in slot order.
func (c *Client) Regions(ctx context.Context, opts ...grpc.CallOption) ([]model.Region, error) {
	list, err := c.ListRegions(ctx, opts...)
	if err != nil {
		return nil, err
	}
	regions := make([]model.Region, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		fields := v.GetStructValue().GetFields()
		r := model.Region{Name: fields["name"].GetStringValue()}
		for _, pv := range fields["points"].GetListValue().GetValues() {
			xy := pv.GetListValue().GetValues()
			if len(xy) < 2 {
				return nil, fmt.Errorf("region %d: point has %d coordinates", i, len(xy))
			}
			r.Vertices = append(r.Vertices, model.Point{X: xy[0].GetNumberValue(), Y: xy[1].GetNumberValue()})
		}
		regions = append(regions, r)
	}
	return regions, nil
}

// WatchRegion opens the region name stream.
func (c *Client) WatchRegion(ctx context.Context, opts ...grpc.CallOption) (grpc.ServerStreamingClient[wrapperspb.StringValue], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], WatchRegionMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[emptypb.Empty, wrapperspb.StringValue]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// WatchMarkers opens the marker stream.
func (c *Client) WatchMarkers(ctx context.Context, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[1], WatchMarkersMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// RecvMarker reads and decodes the next marker from a WatchMarkers stream.
func RecvMarker(stream grpc.ServerStreamingClient[structpb.Struct]) (core.Marker, error) {
	msg, err := stream.Recv()
	if err != nil {
		return core.Marker{}, err
	}
	return markerwire.FromStruct(msg)
}
