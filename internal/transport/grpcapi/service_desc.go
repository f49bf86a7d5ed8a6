// Package grpcapi exposes region membership over gRPC. Messages are protobuf
// well-known types, so the service needs no generated code.
package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "regionwatch.v1.RegionMonitor"

// Full method names.
const (
	ReportPoseMethod   = "/" + ServiceName + "/ReportPose"
	ListRegionsMethod  = "/" + ServiceName + "/ListRegions"
	WatchRegionMethod  = "/" + ServiceName + "/WatchRegion"
	WatchMarkersMethod = "/" + ServiceName + "/WatchMarkers"
)

// RegionMonitorServer is the server API for the RegionMonitor service.
type RegionMonitorServer interface {
	// ReportPose classifies one pose document and returns the region name.
	ReportPose(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	// ListRegions returns every loaded region as {slot, name, points}.
	ListRegions(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	// WatchRegion streams every published region name.
	WatchRegion(*emptypb.Empty, grpc.ServerStreamingServer[wrapperspb.StringValue]) error
	// WatchMarkers streams the current layout, then each broadcast marker.
	WatchMarkers(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

// RegisterRegionMonitorServer registers srv on s.
func RegisterRegionMonitorServer(s grpc.ServiceRegistrar, srv RegionMonitorServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes RegionMonitor for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RegionMonitorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ReportPose", Handler: reportPoseHandler},
		{MethodName: "ListRegions", Handler: listRegionsHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchRegion", Handler: watchRegionHandler, ServerStreams: true},
		{StreamName: "WatchMarkers", Handler: watchMarkersHandler, ServerStreams: true},
	},
	Metadata: "regionwatch/v1/region_monitor.proto",
}

func reportPoseHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RegionMonitorServer).ReportPose(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ReportPoseMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RegionMonitorServer).ReportPose(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listRegionsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RegionMonitorServer).ListRegions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListRegionsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RegionMonitorServer).ListRegions(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func watchRegionHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(RegionMonitorServer).WatchRegion(in, &grpc.GenericServerStream[emptypb.Empty, wrapperspb.StringValue]{ServerStream: stream})
}

func watchMarkersHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(RegionMonitorServer).WatchMarkers(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}
