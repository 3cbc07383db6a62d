package grpc

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dmitrijs2005/gutscan/internal/common"
	"github.com/dmitrijs2005/gutscan/internal/server/auth"
	"github.com/dmitrijs2005/gutscan/internal/syncapi"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type ctxKey string

const deviceIDKey ctxKey = "deviceID"

// WithDeviceID stores the authenticated device in ctx.
func WithDeviceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, deviceIDKey, id)
}

func DeviceIDFromCtx(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(deviceIDKey).(string)
	return id, ok && id != ""
}

// accessTokenInterceptor requires a valid device token on every ScanSync
// method. Health checks pass through.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !strings.HasPrefix(info.FullMethod, "/"+syncapi.ServiceName+"/") {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
			accessToken = values[0]
		}
	}
	if accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	deviceID, err := auth.GetDeviceIDFromToken(accessToken, s.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, "token expired")
		}
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	return handler(WithDeviceID(ctx, deviceID), req)
}

// rateLimitInterceptor throttles submissions per device.
func (s *GRPCServer) rateLimitInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if s.limiter == nil || info.FullMethod != syncapi.SubmitScanFullMethodName {
		return handler(ctx, req)
	}
	deviceID, _ := DeviceIDFromCtx(ctx)
	if !s.limiter.Allow(deviceID) {
		return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
	}
	return handler(ctx, req)
}

// loggingInterceptor logs method, code and duration. Payloads are never
// logged.
func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	var remote string
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		remote = p.Addr.String()
	}
	s.logger.Info(ctx, "grpc",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"dur", time.Since(start),
		"peer", remote,
	)
	return resp, err
}

func (s *GRPCServer) recoverInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "panic", "reason", r, "stack", string(debug.Stack()), "method", info.FullMethod)
			err = status.Error(codes.Internal, "internal")
		}
	}()
	return handler(ctx, req)
}
