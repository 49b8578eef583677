package grpc_control

import (
	"context"
	"strings"

	"candle-replay/src/interfaces"
	"candle-replay/src/logger"
	"candle-replay/src/models"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ControlService implements the ReplayControlServer interface
type ControlService struct {
	Registry interfaces.ISessionRegistry
	Logger   *logger.Logger
}

// NewControlService creates a new instance of ControlService
func NewControlService(registry interfaces.ISessionRegistry, log *logger.Logger) *ControlService {
	return &ControlService{
		Registry: registry,
		Logger:   log,
	}
}

// -----------------------------------------------------------------------------

func (s *ControlService) ListSessions(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	snaps := s.Registry.Snapshots()
	list := make([]interface{}, 0, len(snaps))
	for _, snap := range snaps {
		list = append(list, snapshotFields(snap))
	}

	resp, err := structpb.NewStruct(map[string]interface{}{"sessions": list})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode sessions: %v", err)
	}
	return resp, nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(req)
	if err != nil {
		return nil, err
	}

	snap, ok := s.Registry.Snapshot(id)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "session %s not found", id)
	}

	resp, err := structpb.NewStruct(snapshotFields(snap))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode session: %v", err)
	}
	return resp, nil
}

// -----------------------------------------------------------------------------

// StopSession pauses a running replay. Stopping an idle session is not an error;
// the reply reports stopped=false.
func (s *ControlService) StopSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(req)
	if err != nil {
		return nil, err
	}

	if _, ok := s.Registry.Snapshot(id); !ok {
		return nil, status.Errorf(codes.NotFound, "session %s not found", id)
	}

	stopped := s.Registry.StopSession(id)
	s.Logger.Info("gRPC: StopSession %s (stopped=%v)", id, stopped)

	resp, err := structpb.NewStruct(map[string]interface{}{
		"session_id": id,
		"stopped":    stopped,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return resp, nil
}

// -----------------------------------------------------------------------------

func sessionID(req *structpb.Struct) (string, error) {
	id := strings.TrimSpace(req.GetFields()["session_id"].GetStringValue())
	if id == "" {
		return "", status.Error(codes.InvalidArgument, "session_id is required")
	}
	return id, nil
}

func snapshotFields(snap models.MSessionSnapshot) map[string]interface{} {
	return map[string]interface{}{
		"session_id":     snap.SessionID,
		"state":          snap.State,
		"total":          snap.Total,
		"pointer":        snap.Pointer,
		"speed":          snap.Speed,
		"open_positions": snap.OpenPositions,
		"closed_trades":  snap.ClosedTrades,
		"last_time":      snap.LastTime,
		"last_price":     snap.LastPrice,
		"viewers":        snap.Viewers,
	}
}
