package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Procedure handles one named call. The result is encoded as JSON and sent
// back as a google.protobuf.Value.
type Procedure func(ctx context.Context, args Args) (any, error)

// Server dispatches gRPC calls on a single service to registered
// procedures by method name. It is the counterpart of GRPCFetcher.
type Server struct {
	service string

	mu    sync.RWMutex
	procs map[string]Procedure
}

func NewServer(service string) *Server {
	return &Server{service: service, procs: make(map[string]Procedure)}
}

func (s *Server) Service() string { return s.service }

func (s *Server) Handle(name string, p Procedure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procs[name] = p
}

func (s *Server) Procedures() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.procs))
	for name := range s.procs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Option mounts the dispatcher on a grpc.Server. Calls to methods gRPC
// doesn't know about reach it, so stream interceptors apply but unary
// interceptors do not.
func (s *Server) Option() grpc.ServerOption {
	return grpc.UnknownServiceHandler(s.handle)
}

func (s *Server) handle(_ any, stream grpc.ServerStream) error {
	full, ok := grpc.MethodFromServerStream(stream)
	if !ok {
		return status.Error(codes.Internal, "no method in stream")
	}
	service, name, ok := splitMethod(full)
	if !ok || service != s.service {
		return status.Errorf(codes.Unimplemented, "unknown service for %s", full)
	}

	s.mu.RLock()
	p := s.procs[name]
	s.mu.RUnlock()
	if p == nil {
		return status.Errorf(codes.Unimplemented, "unknown procedure %s", name)
	}

	in := &structpb.Struct{}
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	res, err := p(stream.Context(), Args(in.AsMap()))
	if err != nil {
		return toStatus(err)
	}

	out := &structpb.Value{}
	b, err := json.Marshal(res)
	if err != nil {
		return status.Error(codes.Internal, "encode result")
	}
	if err := protojson.Unmarshal(b, out); err != nil {
		return status.Error(codes.Internal, "encode result")
	}
	return stream.SendMsg(out)
}

func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return status.Error(codes.Unavailable, re.Error())
	}
	return status.Error(codes.Unknown, err.Error())
}

func splitMethod(full string) (service, name string, ok bool) {
	full = strings.TrimPrefix(full, "/")
	i := strings.LastIndex(full, "/")
	if i <= 0 || i == len(full)-1 {
		return "", "", false
	}
	return full[:i], full[i+1:], true
}
