package server

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/experiences/internal/core/api"
)

// DecisionsServiceName is the fully-qualified gRPC service name.
const DecisionsServiceName = "experiences.v1.Decisions"

// Full method names for clients calling through grpc.ClientConn.Invoke.
const (
	MethodEvaluate       = "/" + DecisionsServiceName + "/Evaluate"
	MethodEvaluateAll    = "/" + DecisionsServiceName + "/EvaluateAll"
	MethodEmit           = "/" + DecisionsServiceName + "/Emit"
	MethodResetFrequency = "/" + DecisionsServiceName + "/ResetFrequency"
)

// DecisionsServer is the Decisions service. Requests and responses are
// google.protobuf.Struct values carrying the HTTP API's JSON shapes.
type DecisionsServer interface {
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EvaluateAll(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Emit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetFrequency(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type decisionsServer struct {
	svc *api.Service
}

var _ DecisionsServer = (*decisionsServer)(nil)

func (s *decisionsServer) Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req api.EvaluateRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, api.Status(err)
	}
	d, err := s.svc.Evaluate(ctx, req)
	if err != nil {
		return nil, api.Status(err)
	}
	return toStruct(d)
}

func (s *decisionsServer) EvaluateAll(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req api.EvaluateRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, api.Status(err)
	}
	decisions, err := s.svc.EvaluateAll(ctx, req)
	if err != nil {
		return nil, api.Status(err)
	}
	return toStruct(map[string]any{"decisions": decisions})
}

func (s *decisionsServer) Emit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req api.EmitRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, api.Status(err)
	}
	if err := s.svc.Emit(ctx, req); err != nil {
		return nil, api.Status(err)
	}
	return &structpb.Struct{}, nil
}

func (s *decisionsServer) ResetFrequency(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		ExperienceID string `json:"experienceId"`
	}
	if err := fromStruct(in, &req); err != nil {
		return nil, api.Status(err)
	}
	if req.ExperienceID == "" {
		return nil, api.Status(fmt.Errorf("%w: experienceId required", api.ErrInvalidRequest))
	}
	if err := s.svc.ResetFrequency(ctx, req.ExperienceID); err != nil {
		return nil, api.Status(err)
	}
	return &structpb.Struct{}, nil
}

// fromStruct decodes a Struct into dst through its JSON form.
// AsMap plus encoding/json keeps whole-number timestamps in integer form.
func fromStruct(in *structpb.Struct, dst any) error {
	if in == nil {
		return nil
	}
	raw, err := json.Marshal(in.AsMap())
	if err != nil {
		return fmt.Errorf("%w: %v", api.ErrInvalidRequest, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", api.ErrInvalidRequest, err)
	}
	return nil
}

// toStruct encodes v as a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, api.Status(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, api.Status(err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, api.Status(err)
	}
	return out, nil
}

func decisionsHandler(method func(DecisionsServer, context.Context, *structpb.Struct) (*structpb.Struct, error), fullMethod string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(DecisionsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return method(srv.(DecisionsServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var decisionsServiceDesc = grpc.ServiceDesc{
	ServiceName: DecisionsServiceName,
	HandlerType: (*DecisionsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: decisionsHandler(DecisionsServer.Evaluate, MethodEvaluate)},
		{MethodName: "EvaluateAll", Handler: decisionsHandler(DecisionsServer.EvaluateAll, MethodEvaluateAll)},
		{MethodName: "Emit", Handler: decisionsHandler(DecisionsServer.Emit, MethodEmit)},
		{MethodName: "ResetFrequency", Handler: decisionsHandler(DecisionsServer.ResetFrequency, MethodResetFrequency)},
	},
	Metadata: "experiences/v1/decisions.proto",
}
