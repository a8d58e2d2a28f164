package embedding

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// The embedding service speaks google.protobuf.Struct in both directions:
// request {"text": string}, response {"embedding": [number...]}.
const (
	serviceName = "navigator.embedding.v1.EmbeddingService"
	embedMethod = "/" + serviceName + "/Embed"
)

// #region client-struct
// GRPCClient calls a remote embedding service over gRPC.
type GRPCClient struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewGRPCClient connects to the embedding gRPC server.
func NewGRPCClient(addr string) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &GRPCClient{conn: conn, cc: conn}, nil
}

// NewGRPCClientWithConn creates a GRPCClient over an existing connection.
// Used for testing without a real server.
func NewGRPCClientWithConn(cc grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{cc: cc}
}

// Close shuts down the gRPC connection if this client owns one.
func (c *GRPCClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion constructor

// #region embed
// Embed sends text to the embedding service.
func (c *GRPCClient) Embed(ctx context.Context, text string) ([]float32, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"text": text})
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	resp := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, embedMethod, req, resp); err != nil {
		return nil, fmt.Errorf("embed rpc: %w", err)
	}
	return decodeEmbedding(resp)
}

func decodeEmbedding(resp *structpb.Struct) ([]float32, error) {
	list := resp.GetFields()["embedding"].GetListValue()
	if list == nil {
		return nil, fmt.Errorf("embed rpc: response has no embedding")
	}
	vec := make([]float32, len(list.GetValues()))
	for i, v := range list.GetValues() {
		if _, ok := v.GetKind().(*structpb.Value_NumberValue); !ok {
			return nil, fmt.Errorf("embed rpc: element %d is not a number", i)
		}
		vec[i] = float32(v.GetNumberValue())
	}
	return vec, nil
}

// #endregion embed

// #region server
// Server is implemented by an in-process embedding service.
type Server interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RegisterServer exposes impl on s under the embedding service contract.
func RegisterServer(s *grpc.Server, impl Server) {
	s.RegisterService(&serviceDesc, impl)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Embed", Handler: embedHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "navigator/embedding/v1/embedding.proto",
}

func embedHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	handle := func(ctx context.Context, req interface{}) (interface{}, error) {
		text := req.(*structpb.Struct).GetFields()["text"].GetStringValue()
		vec, err := srv.(Server).Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, len(vec))
		for i, f := range vec {
			values[i] = float64(f)
		}
		return structpb.NewStruct(map[string]interface{}{"embedding": values})
	}
	if interceptor == nil {
		return handle(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: embedMethod}
	return interceptor(ctx, in, info, handle)
}

// #endregion server
