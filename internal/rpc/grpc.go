package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// GRPCFetcher calls procedures as unary gRPC methods named
// /{service}/{procedure}. Arguments travel as a google.protobuf.Struct and
// the result as a google.protobuf.Value, so no generated stubs are needed.
type GRPCFetcher struct {
	conn    *grpc.ClientConn
	service string
	timeout time.Duration
}

// DialGRPC connects to addr (e.g. "platform:50051") without TLS.
func DialGRPC(addr, service string, opts ...grpc.DialOption) (*GRPCFetcher, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("rpc dial: %w", err)
	}
	return NewGRPCFetcher(conn, service), nil
}

func NewGRPCFetcher(conn *grpc.ClientConn, service string) *GRPCFetcher {
	return &GRPCFetcher{conn: conn, service: service}
}

func (f *GRPCFetcher) Close() error { return f.conn.Close() }

// SetTimeout bounds calls whose context carries no deadline.
func (f *GRPCFetcher) SetTimeout(d time.Duration) { f.timeout = d }

func (f *GRPCFetcher) Invoke(ctx context.Context, procedure string, args Args) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok && f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	in, err := structpb.NewStruct(args)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: encode args: %w", procedure, err)
	}

	// forward the session token the way the browser sent it
	if tok := TokenFrom(ctx); tok != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+tok)
	}

	out := &structpb.Value{}
	if err := f.conn.Invoke(ctx, MethodPath(f.service, procedure), in, out); err != nil {
		if st, ok := status.FromError(err); ok {
			return nil, &RemoteError{Procedure: procedure, Code: int(st.Code()), Message: st.Message()}
		}
		return nil, fmt.Errorf("rpc %s: %w", procedure, err)
	}

	raw, err := protojson.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: decode result: %w", procedure, err)
	}
	return raw, nil
}

// MethodPath is the full gRPC method name of a procedure.
func MethodPath(service, procedure string) string {
	return "/" + service + "/" + procedure
}
