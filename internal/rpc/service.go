package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// StorageServer is the per-host data-plane RPC surface: every batched
// client RPC spec.md §6 names, each translated by Server into one or
// more Pipeline/Reader calls and annotated with per-partition
// completeness bookkeeping.
type StorageServer interface {
	AddVertices(context.Context, *AddVerticesRequest) (*AddVerticesResponse, error)
	UpdateVertex(context.Context, *UpdateVertexRequest) (*UpdateVertexResponse, error)
	DeleteVertex(context.Context, *DeleteVertexRequest) (*DeleteVertexResponse, error)
	AddEdges(context.Context, *AddEdgesRequest) (*AddEdgesResponse, error)
	UpdateEdge(context.Context, *UpdateEdgeRequest) (*UpdateEdgeResponse, error)
	DeleteEdges(context.Context, *DeleteEdgesRequest) (*DeleteEdgesResponse, error)
	GetVertexProps(context.Context, *GetVertexPropsRequest) (*GetVertexPropsResponse, error)
	GetEdgeProps(context.Context, *GetEdgePropsRequest) (*GetEdgePropsResponse, error)
	GetNeighbors(context.Context, *GetNeighborsRequest) (*GetNeighborsResponse, error)
	GetDstBySrc(context.Context, *GetDstBySrcRequest) (*GetDstBySrcResponse, error)
	LookupIndex(context.Context, *LookupIndexRequest) (*LookupIndexResponse, error)
}

// AdminServer exposes the partition-membership and leadership control
// endpoints spec.md §4.7 lists alongside the data-plane RPCs.
type AdminServer interface {
	TransferLeader(context.Context, *TransferLeaderRequest) (*TransferLeaderResponse, error)
	AddPart(context.Context, *AddPartRequest) (*AddPartResponse, error)
	RemovePart(context.Context, *RemovePartRequest) (*RemovePartResponse, error)
	AddLearner(context.Context, *AddLearnerRequest) (*AddLearnerResponse, error)
	MemberChange(context.Context, *MemberChangeRequest) (*MemberChangeResponse, error)
	WaitForCatchUpData(context.Context, *WaitForCatchUpDataRequest) (*WaitForCatchUpDataResponse, error)
	GetLeader(context.Context, *GetLeaderRequest) (*GetLeaderResponse, error)
}

// unaryHandler adapts one StorageServer/AdminServer method into the
// shape grpc.ServiceDesc expects: decode the gob request, invoke the
// method, let the generic unary server interceptor chain (metrics,
// logging) run via grpc.UnaryServerInfo/Handler. There is no protoc in
// this environment to generate this boilerplate (see codec.go), so it
// is hand-authored the way grpc-go's own examples/features/encoding
// sample wires a custom codec into a hand-rolled ServiceDesc.
func unaryHandler[Req any, Resp any](method func(context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv}
		handler := func(ctx context.Context, req any) (any, error) {
			return method(ctx, req.(*Req))
		}
		return interceptor(ctx, req, info, handler)
	}
}

// ServiceDesc registers every StorageServer/AdminServer method found
// on a *Server. It is passed to grpc.NewServer's RegisterService,
// mirroring pkg/api/server.go's proto.RegisterWarrenAPIServer call but
// built by hand since storage RPCs here are gob-coded, not protobuf.
func ServiceDesc(s *Server) *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: "nebulastore.storage.Storage",
		HandlerType: (*StorageServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "AddVertices", Handler: unaryHandler(s.AddVertices)},
			{MethodName: "UpdateVertex", Handler: unaryHandler(s.UpdateVertex)},
			{MethodName: "DeleteVertex", Handler: unaryHandler(s.DeleteVertex)},
			{MethodName: "AddEdges", Handler: unaryHandler(s.AddEdges)},
			{MethodName: "UpdateEdge", Handler: unaryHandler(s.UpdateEdge)},
			{MethodName: "DeleteEdges", Handler: unaryHandler(s.DeleteEdges)},
			{MethodName: "GetVertexProps", Handler: unaryHandler(s.GetVertexProps)},
			{MethodName: "GetEdgeProps", Handler: unaryHandler(s.GetEdgeProps)},
			{MethodName: "GetNeighbors", Handler: unaryHandler(s.GetNeighbors)},
			{MethodName: "GetDstBySrc", Handler: unaryHandler(s.GetDstBySrc)},
			{MethodName: "LookupIndex", Handler: unaryHandler(s.LookupIndex)},
			{MethodName: "TransferLeader", Handler: unaryHandler(s.TransferLeader)},
			{MethodName: "AddPart", Handler: unaryHandler(s.AddPart)},
			{MethodName: "RemovePart", Handler: unaryHandler(s.RemovePart)},
			{MethodName: "AddLearner", Handler: unaryHandler(s.AddLearner)},
			{MethodName: "MemberChange", Handler: unaryHandler(s.MemberChange)},
			{MethodName: "WaitForCatchUpData", Handler: unaryHandler(s.WaitForCatchUpData)},
			{MethodName: "GetLeader", Handler: unaryHandler(s.GetLeader)},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "internal/rpc/service.go",
	}
}
