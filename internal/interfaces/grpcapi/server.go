package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"dspacegw/internal/application"
	"dspacegw/internal/infrastructure/ratelimit"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// RequestObserver receives one event per finished request.
type RequestObserver interface {
	OnRequest(transport, op, outcome string, elapsed time.Duration)
}

// Server adapts application.Operations to DSpaceServiceServer.
type Server struct {
	UnimplementedDSpaceServiceServer
	ops application.Operations
}

func NewServer(ops application.Operations) (*Server, error) {
	if ops == nil {
		return nil, errors.New("operations are required")
	}
	return &Server{ops: ops}, nil
}

func (s *Server) Call(ctx context.Context, in *structpb.Struct) (*wrapperspb.StringValue, error) {
	fields, err := readFields(in, "To", "Data")
	if err != nil {
		return nil, err
	}
	out, err := s.ops.Call(ctx, application.CallRequest{To: fields["To"], Data: fields["Data"]})
	return respond(out, err)
}

func (s *Server) Send(ctx context.Context, in *structpb.Struct) (*wrapperspb.StringValue, error) {
	fields, err := readFields(in, "To", "Data", "Value")
	if err != nil {
		return nil, err
	}
	out, err := s.ops.Send(ctx, application.SendRequest{To: fields["To"], Data: fields["Data"], Value: fields["Value"]})
	return respond(out, err)
}

func (s *Server) Receipt(ctx context.Context, in *structpb.Struct) (*wrapperspb.StringValue, error) {
	fields, err := readFields(in, "TxHash")
	if err != nil {
		return nil, err
	}
	out, err := s.ops.Receipt(ctx, application.ReceiptRequest{TxHash: fields["TxHash"]})
	return respond(out, err)
}

func (s *Server) CreateAccount(ctx context.Context, in *structpb.Struct) (*wrapperspb.StringValue, error) {
	fields, err := readFields(in, "Id")
	if err != nil {
		return nil, err
	}
	out, err := s.ops.CreateAccount(ctx, application.CreateAccountRequest{ID: fields["Id"]})
	return respond(out, err)
}

// readFields extracts the named string fields. Missing fields read as "".
func readFields(in *structpb.Struct, names ...string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	values := in.GetFields()
	for _, name := range names {
		value, ok := values[name]
		if !ok || value == nil {
			continue
		}
		switch kind := value.GetKind().(type) {
		case *structpb.Value_StringValue:
			out[name] = kind.StringValue
		case *structpb.Value_NullValue:
		default:
			return nil, status.Errorf(codes.InvalidArgument, "field %s must be a string", name)
		}
	}
	return out, nil
}

func respond(out string, err error) (*wrapperspb.StringValue, error) {
	if err != nil {
		return nil, statusFor(err)
	}
	return wrapperspb.String(out), nil
}

func statusFor(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var code codes.Code
	switch application.Classify(err) {
	case application.KindInvalidInput:
		code = codes.InvalidArgument
	case application.KindNotFound:
		code = codes.NotFound
	case application.KindConflict:
		code = codes.AlreadyExists
	case application.KindTimeout:
		code = codes.DeadlineExceeded
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

type ServerConfig struct {
	Limiter  *ratelimit.PeerLimiter
	Observer RequestObserver
	Logger   *slog.Logger
}

// NewGRPCServer builds a grpc.Server with the gateway interceptor chain and
// the DSpaceService registered.
func NewGRPCServer(srv DSpaceServiceServer, cfg ServerConfig) *grpc.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(
		recoverInterceptor(logger),
		observeInterceptor(cfg.Observer, logger),
		rateLimitInterceptor(cfg.Limiter),
	))
	RegisterDSpaceServiceServer(server, srv)
	return server
}

// Serve runs server on lis until ctx is done, then stops it gracefully.
func Serve(ctx context.Context, server *grpc.Server, lis net.Listener) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			server.GracefulStop()
		case <-done:
		}
	}()
	if err := server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}

func methodName(fullMethod string) string {
	for i := len(fullMethod) - 1; i >= 0; i-- {
		if fullMethod[i] == '/' {
			return fullMethod[i+1:]
		}
	}
	return fullMethod
}

func recoverInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc handler panic", "op", methodName(info.FullMethod), "panic", fmt.Sprint(r))
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

func observeInterceptor(observer RequestObserver, logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		started := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(started)
		op := methodName(info.FullMethod)
		code := status.Code(err)
		if observer != nil {
			observer.OnRequest("grpc", op, code.String(), elapsed)
		}
		if err != nil {
			logger.Warn("grpc request failed", "op", op, "peer", peerAddr(ctx), "code", code.String(), "duration", elapsed, "err", err)
		} else {
			logger.Debug("grpc request", "op", op, "peer", peerAddr(ctx), "duration", elapsed)
		}
		return resp, err
	}
}

func rateLimitInterceptor(limiter *ratelimit.PeerLimiter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !limiter.Allow(peerAddr(ctx)) {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}
