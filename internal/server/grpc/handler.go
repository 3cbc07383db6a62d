package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gutscan/internal/common"
	"github.com/dmitrijs2005/gutscan/internal/syncapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) SubmitScan(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req syncapi.SubmitScanRequest
	if err := syncapi.FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	deviceID, ok := DeviceIDFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated")
	}

	result, err := s.sync.Submit(ctx, deviceID, req)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return s.reply(ctx, syncapi.SubmitScanResponse{Status: result})
}

func (s *GRPCServer) LookupFood(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req syncapi.LookupFoodRequest
	if err := syncapi.FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	f, err := s.sync.Lookup(ctx, req.Key)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return s.reply(ctx, syncapi.Food{Key: f.Key, Name: f.Name, Attributes: f.Attributes})
}

func (s *GRPCServer) reply(ctx context.Context, v any) (*structpb.Struct, error) {
	out, err := syncapi.ToStruct(v)
	if err != nil {
		s.logger.Error(ctx, "failed to encode response", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrorInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	default:
		s.logger.Error(ctx, err.Error())
		return status.Error(codes.Internal, "internal error")
	}
}
