package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gutscan/internal/client/models"
	"github.com/dmitrijs2005/gutscan/internal/common"
	"github.com/dmitrijs2005/gutscan/internal/syncapi"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	endpointURL string
	accessToken string
	deviceID    string

	conn   *grpc.ClientConn
	sync   syncapi.ScanSyncClient
	health healthpb.HealthClient
}

func withCredentials(ctx context.Context, token, deviceID string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}
	if deviceID != "" {
		md.Set(common.DeviceIDHeaderName, deviceID)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) credentialsInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return invoker(withCredentials(ctx, s.accessToken, s.deviceID), method, req, reply, cc, opts...)
}

// NewGRPCClient prepares a lazy connection to endpointURL. Extra dial
// options are appended after the defaults, so tests can swap the dialer.
func NewGRPCClient(endpointURL, accessToken, deviceID string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken, deviceID: deviceID}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.credentialsInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.sync = syncapi.NewScanSyncClient(conn)
	c.health = healthpb.NewHealthClient(conn)
	return c, nil
}

// Ping succeeds when the sync service reports SERVING.
func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: syncapi.ServiceName})
	if err != nil {
		return s.mapError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return ErrUnavailable
	}
	return nil
}

// SubmitScan delivers one queued scan. A duplicate acknowledgement counts
// as success.
func (s *GRPCClient) SubmitScan(ctx context.Context, scan models.QueuedScan) error {
	in, err := syncapi.ToStruct(syncapi.SubmitScanRequest{
		ClientID:   scan.ClientID,
		FoodKey:    scan.FoodKey,
		RecordedAt: scan.RecordedAt.UTC().Truncate(time.Millisecond),
		Analysis:   scan.Analysis,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}

	out, err := s.sync.SubmitScan(ctx, in)
	if err != nil {
		return s.mapError(err)
	}

	var resp syncapi.SubmitScanResponse
	if err := syncapi.FromStruct(out, &resp); err != nil {
		return err
	}
	switch resp.Status {
	case syncapi.StatusAccepted, syncapi.StatusDuplicate:
		return nil
	default:
		return fmt.Errorf("unexpected submission status %q", resp.Status)
	}
}

func (s *GRPCClient) LookupFood(ctx context.Context, key string) (*models.FoodItem, error) {
	in, err := syncapi.ToStruct(syncapi.LookupFoodRequest{Key: key})
	if err != nil {
		return nil, err
	}

	out, err := s.sync.LookupFood(ctx, in)
	if err != nil {
		return nil, s.mapError(err)
	}

	var food syncapi.Food
	if err := syncapi.FromStruct(out, &food); err != nil {
		return nil, err
	}
	return &models.FoodItem{Key: food.Key, Name: food.Name, Attributes: food.Attributes}, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	case codes.InvalidArgument, codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	case codes.NotFound:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
