// Package syncapi declares the gRPC contract between the client and the
// sync endpoint. Messages travel as google.protobuf.Struct, so the service
// descriptor is written by hand instead of generated.
package syncapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "gutscan.sync.v1.ScanSync"

const (
	SubmitScanFullMethodName = "/" + ServiceName + "/SubmitScan"
	LookupFoodFullMethodName = "/" + ServiceName + "/LookupFood"
)

// ScanSyncServer is implemented by the sync endpoint.
type ScanSyncServer interface {
	SubmitScan(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	LookupFood(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// ScanSyncClient is the client side of ScanSyncServer.
type ScanSyncClient interface {
	SubmitScan(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	LookupFood(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type scanSyncClient struct {
	cc grpc.ClientConnInterface
}

func NewScanSyncClient(cc grpc.ClientConnInterface) ScanSyncClient {
	return &scanSyncClient{cc: cc}
}

func (c *scanSyncClient) SubmitScan(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SubmitScanFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *scanSyncClient) LookupFood(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, LookupFoodFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterScanSyncServer(s grpc.ServiceRegistrar, srv ScanSyncServer) {
	s.RegisterService(&ScanSync_ServiceDesc, srv)
}

func unaryHandler(fullMethod string, call func(srv ScanSyncServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ScanSyncServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ScanSyncServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ScanSync_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ScanSyncServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SubmitScan",
			Handler: unaryHandler(SubmitScanFullMethodName, func(srv ScanSyncServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return srv.SubmitScan(ctx, in)
			}),
		},
		{
			MethodName: "LookupFood",
			Handler: unaryHandler(LookupFoodFullMethodName, func(srv ScanSyncServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return srv.LookupFood(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gutscan/sync/v1/sync.proto",
}
