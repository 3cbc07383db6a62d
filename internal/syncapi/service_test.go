package syncapi

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type echoServer struct {
	seen []SubmitScanRequest
}

func (s *echoServer) SubmitScan(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SubmitScanRequest
	if err := FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.seen = append(s.seen, req)
	return ToStruct(SubmitScanResponse{Status: StatusAccepted})
}

func (s *echoServer) LookupFood(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req LookupFoodRequest
	if err := FromStruct(in, &req); err != nil {
		return nil, err
	}
	if req.Key != "400" {
		return nil, status.Error(codes.NotFound, "unknown food")
	}
	return ToStruct(Food{Key: "400", Name: "Yogurt", Attributes: map[string]any{"fodmap": "low"}})
}

func dialBufconn(t *testing.T, srv ScanSyncServer, opts ...grpc.ServerOption) ScanSyncClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(opts...)
	RegisterScanSyncServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewScanSyncClient(conn)
}

func TestSubmitScan_RoundTrip(t *testing.T) {
	srv := &echoServer{}
	c := dialBufconn(t, srv)

	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	in, err := ToStruct(SubmitScanRequest{
		ClientID:   "c-1",
		FoodKey:    "400",
		RecordedAt: at,
		Analysis:   map[string]any{"score": 3, "symptoms": map[string]any{"$enc": "v1", "ct": "AA=="}},
	})
	require.NoError(t, err)

	out, err := c.SubmitScan(context.Background(), in)
	require.NoError(t, err)

	var resp SubmitScanResponse
	require.NoError(t, FromStruct(out, &resp))
	assert.Equal(t, StatusAccepted, resp.Status)

	require.Len(t, srv.seen, 1)
	assert.Equal(t, "c-1", srv.seen[0].ClientID)
	assert.True(t, at.Equal(srv.seen[0].RecordedAt))
	assert.Equal(t, float64(3), srv.seen[0].Analysis["score"])
	assert.Equal(t, "v1", srv.seen[0].Analysis["symptoms"].(map[string]any)["$enc"])
}

func TestSubmitScan_Invalid(t *testing.T) {
	c := dialBufconn(t, &echoServer{})

	in, err := ToStruct(SubmitScanRequest{FoodKey: "400"})
	require.NoError(t, err)
	_, err = c.SubmitScan(context.Background(), in)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestLookupFood(t *testing.T) {
	c := dialBufconn(t, &echoServer{})

	in, _ := ToStruct(LookupFoodRequest{Key: "400"})
	out, err := c.LookupFood(context.Background(), in)
	require.NoError(t, err)

	var food Food
	require.NoError(t, FromStruct(out, &food))
	assert.Equal(t, "Yogurt", food.Name)
	assert.Equal(t, "low", food.Attributes["fodmap"])

	in, _ = ToStruct(LookupFoodRequest{Key: "nope"})
	_, err = c.LookupFood(context.Background(), in)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestInterceptorSeesFullMethod(t *testing.T) {
	var method string
	ic := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, h grpc.UnaryHandler) (any, error) {
		method = info.FullMethod
		return h(ctx, req)
	}
	c := dialBufconn(t, &echoServer{}, grpc.UnaryInterceptor(ic))

	in, _ := ToStruct(LookupFoodRequest{Key: "400"})
	_, err := c.LookupFood(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, LookupFoodFullMethodName, method)
}

func TestFromStruct_Nil(t *testing.T) {
	var v Food
	require.ErrorIs(t, FromStruct(nil, &v), ErrMalformed)
}
