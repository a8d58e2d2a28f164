package embedding

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region mock
type mockConn struct {
	method string
	req    *structpb.Struct
	resp   *structpb.Struct
	err    error
}

func (m *mockConn) Invoke(_ context.Context, method string, args, reply interface{}, _ ...grpc.CallOption) error {
	m.method = method
	m.req = args.(*structpb.Struct)
	if m.err != nil {
		return m.err
	}
	proto.Merge(reply.(*structpb.Struct), m.resp)
	return nil
}

func (m *mockConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("streams not supported")
}

func embeddingResponse(t *testing.T, values ...interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(map[string]interface{}{"embedding": values})
	require.NoError(t, err)
	return s
}

// #endregion mock

// #region client-tests
func TestNewGRPCClient(t *testing.T) {
	client, err := NewGRPCClient("localhost:0")
	require.NoError(t, err)
	assert.NoError(t, client.Close())
}

func TestGRPCClient_Embed(t *testing.T) {
	conn := &mockConn{resp: embeddingResponse(t, 0.5, -0.25, 1.0)}
	c := NewGRPCClientWithConn(conn)

	vec, err := c.Embed(context.Background(), "stillness")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25, 1.0}, vec)
	assert.Equal(t, embedMethod, conn.method)
	assert.Equal(t, "stillness", conn.req.GetFields()["text"].GetStringValue())
}

func TestGRPCClient_EmbedRPCError(t *testing.T) {
	c := NewGRPCClientWithConn(&mockConn{err: errors.New("unavailable")})
	_, err := c.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed rpc")
}

func TestGRPCClient_EmbedMissingField(t *testing.T) {
	c := NewGRPCClientWithConn(&mockConn{resp: &structpb.Struct{}})
	_, err := c.Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestGRPCClient_EmbedNonNumeric(t *testing.T) {
	c := NewGRPCClientWithConn(&mockConn{resp: embeddingResponse(t, 0.1, "oops")})
	_, err := c.Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestGRPCClient_CloseWithoutOwnedConn(t *testing.T) {
	c := NewGRPCClientWithConn(&mockConn{})
	assert.NoError(t, c.Close())
}

// #endregion client-tests

// #region roundtrip
type lengthServer struct{}

func (lengthServer) Embed(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func TestGRPC_RoundTripOverBufconn(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterServer(srv, lengthServer{})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	vec, err := NewGRPCClientWithConn(conn).Embed(context.Background(), "abcd")
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 1}, vec)
}

// #endregion roundtrip
