package grpcapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/notify"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/logging"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/metrics"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/schema"
)

// Controller is the engine surface exposed over gRPC.
type Controller interface {
	Ingest(f models.Fragment)
	StartRecording()
	StopRecording()
	ClearTranscript()
	State() models.State
}

type Server struct {
	ctrl      Controller
	hub       *notify.Broadcaster
	validator *schema.Validator
	logger    zerolog.Logger
}

var _ ControlServer = (*Server)(nil)

// NewServer builds a grpc.Server with TranscriberControl, health and
// reflection registered. hub may be nil, in which case Watch is unavailable.
func NewServer(ctrl Controller, hub *notify.Broadcaster, validator *schema.Validator, m *metrics.Metrics) (*grpc.Server, *health.Server) {
	g := grpc.NewServer(
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(observability.StreamServerInterceptor(m)),
	)
	Register(g, ctrl, hub, validator)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(g, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(g)
	return g, healthServer
}

// Register adds TranscriberControl to g.
func Register(g *grpc.Server, ctrl Controller, hub *notify.Broadcaster, validator *schema.Validator) {
	if validator == nil {
		validator = schema.New()
	}
	g.RegisterService(&ServiceDesc, &Server{
		ctrl:      ctrl,
		hub:       hub,
		validator: validator,
		logger:    logging.WithComponent("grpc"),
	})
}

func (s *Server) StartRecording(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	s.ctrl.StartRecording()
	return s.state()
}

func (s *Server) StopRecording(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	s.ctrl.StopRecording()
	return s.state()
}

func (s *Server) ClearTranscript(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	s.ctrl.ClearTranscript()
	return s.state()
}

func (s *Server) GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return s.state()
}

// PushFragment ingests one fragment given as {"speaker": ..., "text": ...}.
func (s *Server) PushFragment(_ context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	var f models.Fragment
	if err := fromStruct(in, &f); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode fragment: %v", err)
	}
	if err := s.validator.ValidateFragment(f); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if f.ArrivalTime.IsZero() {
		f.ArrivalTime = time.Now()
	}
	s.ctrl.Ingest(f)
	return &emptypb.Empty{}, nil
}

// Watch sends the current state as a transcriptUpdated notification, then
// every notification until the client goes away or the hub shuts down.
func (s *Server) Watch(_ *emptypb.Empty, stream grpc.ServerStream) error {
	if s.hub == nil {
		return status.Error(codes.Unimplemented, "notifications are not enabled")
	}
	sub := s.hub.Subscribe()
	defer sub.Close()

	current := s.ctrl.State()
	initial := models.Notification{
		EventType:   models.EventTranscriptUpdated,
		MeetingID:   current.MeetingID,
		Timestamp:   time.Now().UnixMilli(),
		Transcript:  current.Transcript,
		IsRecording: &current.IsRecording,
	}
	if err := sendNotification(stream, initial); err != nil {
		return err
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-sub.C:
			if !ok {
				return status.Error(codes.Unavailable, "server shutting down")
			}
			if err := sendNotification(stream, n); err != nil {
				s.logger.Debug().Err(err).Msg("Watch send failed")
				return err
			}
		}
	}
}

func (s *Server) state() (*structpb.Struct, error) {
	out, err := toStruct(s.ctrl.State())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode state: %v", err)
	}
	return out, nil
}

func sendNotification(stream grpc.ServerStream, n models.Notification) error {
	msg, err := toStruct(n)
	if err != nil {
		return status.Errorf(codes.Internal, "encode notification: %v", err)
	}
	return stream.SendMsg(msg)
}

// toStruct converts v to a Struct through its JSON encoding.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("expected a JSON object: %w", err)
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes s into v through its JSON encoding.
func fromStruct(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
