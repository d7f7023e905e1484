package rpc

import (
	"github.com/cuemby/nebulastore/internal/codec"
	"github.com/cuemby/nebulastore/internal/errs"
	"github.com/cuemby/nebulastore/internal/mutation"
	"github.com/cuemby/nebulastore/internal/read"
)

// BatchResponse is embedded in every storage RPC response. Completeness
// is the percentage of partitions touched by the request whose
// sub-request succeeded; FailedParts names, for every partition that
// did not, the error code the client should decide on (retry, accept
// partial, surface to its own caller).
type BatchResponse struct {
	Completeness int
	FailedParts  map[uint32]errs.Code
}

func newBatchResponse() *BatchResponse {
	return &BatchResponse{Completeness: 100, FailedParts: map[uint32]errs.Code{}}
}

func (b *BatchResponse) record(partID uint32, err error) {
	if err == nil {
		return
	}
	b.FailedParts[partID] = errs.CodeOf(err)
}

func (b *BatchResponse) finish(total int) {
	if total == 0 {
		b.Completeness = 100
		return
	}
	failed := len(b.FailedParts)
	b.Completeness = (total - failed) * 100 / total
}

// AddVerticesRequest upserts one tag row per mutation. Mutations need
// not share a partition; the server buckets per-mutation failures by
// the partition schema.Cache.PartitionOf resolves each VertexID to.
type AddVerticesRequest struct {
	SpaceID   uint32
	Mutations []mutation.VertexMutation
}

type AddVerticesResponse struct {
	BatchResponse
}

// UpdateVertexRequest is AddVerticesRequest for a single row.
type UpdateVertexRequest struct {
	SpaceID  uint32
	Mutation mutation.VertexMutation
}

type UpdateVertexResponse struct {
	BatchResponse
}

// DeleteVertexRequest removes the named tag rows of one vertex.
type DeleteVertexRequest struct {
	SpaceID  uint32
	VertexID []byte
	TagIDs   []int32
}

type DeleteVertexResponse struct {
	BatchResponse
}

// AddEdgesRequest upserts both directions of each edge.
type AddEdgesRequest struct {
	SpaceID uint32
	Edges   []mutation.EdgeUpsert
}

type AddEdgesResponse struct {
	BatchResponse
}

// UpdateEdgeRequest is AddEdgesRequest for a single edge.
type UpdateEdgeRequest struct {
	SpaceID uint32
	Edge    mutation.EdgeUpsert
}

type UpdateEdgeResponse struct {
	BatchResponse
}

// DeleteEdgesRequest removes both directions of each named edge.
type DeleteEdgesRequest struct {
	SpaceID uint32
	IDs     []mutation.EdgeID
}

type DeleteEdgesResponse struct {
	BatchResponse
}

// GetVertexPropsRequest reads one tag row per vertex id.
type GetVertexPropsRequest struct {
	SpaceID   uint32
	VertexIDs [][]byte
	TagID     int32
}

type GetVertexPropsResponse struct {
	BatchResponse
	// Values is keyed by the vertex id's raw bytes (string(vertexID));
	// entries whose partition failed or whose row has no live version
	// are absent rather than zero-valued.
	Values map[string][]codec.Value
}

// GetEdgePropsRequest reads one edge's current property row.
type GetEdgePropsRequest struct {
	SpaceID  uint32
	SrcID    []byte
	EdgeType int32
	Ranking  int64
	DstID    []byte
}

type GetEdgePropsResponse struct {
	BatchResponse
	Values []codec.Value
}

// GetNeighborsRequest scans out-edges of edgeType from one source
// vertex; see read.Reader.GetNeighbors for the ordering contract.
type GetNeighborsRequest struct {
	SpaceID      uint32
	SrcID        []byte
	EdgeType     int32
	OrderByField int
	Limit        int
}

type GetNeighborsResponse struct {
	BatchResponse
	Neighbors []read.NeighborResult
}

// GetDstBySrcRequest fans a dst-by-src lookup out, one sub-request per
// source vertex, since each may live on a different partition.
type GetDstBySrcRequest struct {
	SpaceID  uint32
	SrcIDs   [][]byte
	EdgeType int32
}

type GetDstBySrcResponse struct {
	BatchResponse
	// Dst is keyed the same way read.Reader.GetDstBySrc keys its map.
	Dst map[string][][]byte
}

// LookupIndexRequest probes indexID across every named partition of
// the space (the caller, typically the query layer, has already
// resolved which partitions the index spans via schema.Cache).
type LookupIndexRequest struct {
	SpaceID     uint32
	PartIDs     []uint32
	TagID       int32 // set for a tag index; 0 and IsEdgeIndex=true for an edge index
	EdgeType    int32
	IsEdgeIndex bool
	IndexID     uint32
	ValuePrefix []byte
}

type LookupIndexResponse struct {
	BatchResponse
	Hits []read.IndexHit
}

// --- Admin endpoints (per spec.md §4.7's storage RPC surface) ---

// TransferLeaderRequest asks partID's current leader to step down in
// favor of another voter, per raftgroup.Group.TransferLeadership.
type TransferLeaderRequest struct {
	SpaceID, PartID uint32
}

type TransferLeaderResponse struct{}

// AddPartRequest adds nodeID as a full voting replica of partID.
type AddPartRequest struct {
	SpaceID, PartID uint32
	NodeID, Addr    string
}

type AddPartResponse struct{}

// RemovePartRequest removes nodeID from partID's replica set.
type RemovePartRequest struct {
	SpaceID, PartID uint32
	NodeID          string
}

type RemovePartResponse struct{}

// AddLearnerRequest adds nodeID as a non-voting replica that receives
// the log but does not count toward quorum, used to catch a new
// replica up before promoting it with a MemberChangeRequest.
type AddLearnerRequest struct {
	SpaceID, PartID uint32
	NodeID, Addr    string
}

type AddLearnerResponse struct{}

// MemberChangeRequest promotes an existing learner to a voter (Promote
// true) or demotes/removes a voter (Promote false); both are
// expressed through AddVoter/RemoveServer, there being no separate
// raft primitive for "demote in place".
type MemberChangeRequest struct {
	SpaceID, PartID uint32
	NodeID, Addr    string
	Promote         bool
}

type MemberChangeResponse struct{}

// WaitForCatchUpDataRequest blocks until partID's local apply index
// reaches TargetIndex or TimeoutMS elapses, used after AddLearnerRequest
// to confirm the new replica is ready for promotion.
type WaitForCatchUpDataRequest struct {
	SpaceID, PartID uint32
	TargetIndex     uint64
	TimeoutMS       int64
}

type WaitForCatchUpDataResponse struct {
	CaughtUp bool
}

// GetLeaderRequest resolves the current leader of one partition.
type GetLeaderRequest struct {
	SpaceID, PartID uint32
}

type GetLeaderResponse struct {
	LeaderID   string
	LeaderAddr string
}
