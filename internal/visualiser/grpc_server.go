package visualiser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/gridsim/internal/controller"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName        = "gridsim.Visualiser"
	getFrameMethod     = "/" + serviceName + "/GetFrame"
	streamFramesMethod = "/" + serviceName + "/StreamFrames"

	maxMsgSize    = 16 * 1024 * 1024
	shutdownGrace = time.Second
)

// FrameSource provides the latest committed frame.
type FrameSource interface {
	Snapshot() controller.Frame
}

// VisualiserServer is the server API for the gridsim.Visualiser service.
type VisualiserServer interface {
	GetFrame(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StreamFrames(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

// Ensure Server implements the gRPC interface.
var _ VisualiserServer = (*Server)(nil)

// Server implements the Visualiser service on top of a Publisher.
type Server struct {
	source    FrameSource
	publisher *Publisher
}

// NewServer creates a server answering GetFrame from source and streaming
// frames published to pub.
func NewServer(source FrameSource, pub *Publisher) *Server {
	return &Server{source: source, publisher: pub}
}

// GetFrame returns the latest frame including the grid rows.
func (s *Server) GetFrame(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out, err := frameToStruct(s.source.Snapshot(), StreamOptions{IncludePoints: true, IncludeGrid: true})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode frame: %v", err)
	}
	return out, nil
}

// StreamFrames sends the current frame, then every published frame until the
// client goes away or the publisher closes. Frames are dropped, not queued,
// for clients that fall behind.
func (s *Server) StreamFrames(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	opts, err := ParseStreamOptions(req)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	ctx := stream.Context()
	frames, unsubscribe := s.publisher.Subscribe(DefaultClientBuffer)
	defer unsubscribe()
	diagf("StreamFrames started: points=%v grid=%v", opts.IncludePoints, opts.IncludeGrid)

	send := func(f controller.Frame) error {
		msg, err := frameToStruct(f, opts)
		if err != nil {
			return status.Errorf(codes.Internal, "encode frame: %v", err)
		}
		if err := stream.Send(msg); err != nil {
			opsf("send tick %d: %v", f.Tick, err)
			return err
		}
		return nil
	}

	if err := send(s.source.Snapshot()); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			diagf("StreamFrames cancelled")
			return nil
		case f, ok := <-frames:
			if !ok {
				diagf("StreamFrames ended: publisher closed")
				return nil
			}
			if err := send(f); err != nil {
				return err
			}
		}
	}
}

func getFrameHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VisualiserServer).GetFrame(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getFrameMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VisualiserServer).GetFrame(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func streamFramesHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(VisualiserServer).StreamFrames(m, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// ServiceDesc describes the gridsim.Visualiser service. Messages use the
// well-known Struct and Empty types so no generated code is needed.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*VisualiserServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetFrame", Handler: getFrameHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamFrames", Handler: streamFramesHandler, ServerStreams: true},
	},
	Metadata: "gridsim/visualiser",
}

// RegisterService registers the visualiser service with a gRPC server.
func RegisterService(s grpc.ServiceRegistrar, srv VisualiserServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// NewGRPCServer returns a gRPC server sized for full-grid frames with the
// visualiser service registered.
func NewGRPCServer(srv VisualiserServer) *grpc.Server {
	gs := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	)
	RegisterService(gs, srv)
	return gs
}

// Serve runs srv on ln until ctx is cancelled, then stops gracefully.
func Serve(ctx context.Context, ln net.Listener, srv VisualiserServer) error {
	gs := NewGRPCServer(srv)
	errCh := make(chan error, 1)
	go func() {
		diagf("gRPC server listening on %s", ln.Addr())
		errCh <- gs.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		stopped := make(chan struct{})
		go func() {
			gs.GracefulStop()
			close(stopped)
		}()
		// Open streams do not end on GracefulStop.
		select {
		case <-stopped:
		case <-time.After(shutdownGrace):
			gs.Stop()
		}
		<-errCh
		diagf("gRPC server stopped")
		return nil
	}
}

// Client is a thin client for the visualiser service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an open connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// GetFrame fetches the latest frame.
func (c *Client) GetFrame(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getFrameMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// StreamFrames opens a frame stream.
func (c *Client) StreamFrames(ctx context.Context, so StreamOptions, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], streamFramesMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(so.Struct()); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
