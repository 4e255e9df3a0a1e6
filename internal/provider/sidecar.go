package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Generation sidecar contract. Requests and replies are google.protobuf.Struct
// so no generated stubs are required on either side.
const (
	SidecarService        = "vital.generation.v1.Generator"
	sidecarGenerateMethod = "/" + SidecarService + "/Generate"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// SidecarConfig holds configuration for the gRPC sidecar client.
type SidecarConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	DialOptions      []grpc.DialOption
}

// DefaultSidecarConfig returns default configuration.
func DefaultSidecarConfig(addr string) SidecarConfig {
	return SidecarConfig{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// Sidecar generates text through a gRPC generation service.
type Sidecar struct {
	id     string
	conn   *grpc.ClientConn
	addr   string
	logger *slog.Logger
}

// NewSidecar connects to the sidecar and waits until it is ready so bad
// endpoints fail at startup rather than on the first turn.
func NewSidecar(id string, cfg SidecarConfig, logger *slog.Logger) (*Sidecar, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sidecar client for %s: %w", cfg.Address, err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("generation sidecar at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to generation sidecar", "provider", id, "address", cfg.Address)

	return &Sidecar{id: id, conn: conn, addr: cfg.Address, logger: logger}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// ID returns the configured provider id.
func (s *Sidecar) ID() string { return s.id }

// Attempt invokes Generate with a Struct request {system, message, model,
// max_tokens, temperature} and reads the "text" field of the reply.
func (s *Sidecar) Attempt(ctx context.Context, req Request) (string, error) {
	in, err := structpb.NewStruct(map[string]any{
		"system":      req.System,
		"message":     req.Message,
		"model":       req.Model,
		"max_tokens":  req.MaxTokens,
		"temperature": float64(req.Temperature),
	})
	if err != nil {
		return "", NewError(s.id, KindTransportError, fmt.Errorf("build request: %w", err))
	}

	out := &structpb.Struct{}
	if err := s.conn.Invoke(ctx, sidecarGenerateMethod, in, out); err != nil {
		return "", s.classify(err)
	}

	text := strings.TrimSpace(out.GetFields()["text"].GetStringValue())
	if text == "" {
		return "", NewError(s.id, KindMalformedResponse, ErrEmptyResponse)
	}
	return text, nil
}

// Health uses the standard gRPC health protocol.
func (s *Sidecar) Health(ctx context.Context) error {
	resp, err := healthpb.NewHealthClient(s.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: SidecarService})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("sidecar not serving: %s", resp.GetStatus())
	}
	return nil
}

// Close closes the gRPC connection.
func (s *Sidecar) Close() error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		s.logger.Warn("failed to close gRPC connection", "error", err)
		return err
	}
	return nil
}

func (s *Sidecar) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(s.id, KindTimeout, err)
	}
	var kind FailureKind
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		kind = KindTimeout
	case codes.ResourceExhausted:
		kind = KindRateLimited
	case codes.FailedPrecondition, codes.PermissionDenied:
		kind = KindQuotaExceeded
	case codes.Internal, codes.DataLoss:
		kind = KindMalformedResponse
	default:
		kind = KindTransportError
	}
	return NewError(s.id, kind, err)
}
