package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealth checks a backend through the standard gRPC health protocol.
// Qdrant serves it on its gRPC port.
type GRPCHealth struct {
	address string
	service string
	conn    *grpc.ClientConn
	client  healthpb.HealthClient
}

// NewGRPCHealth creates a checker. Call Connect before Check.
func NewGRPCHealth(address, service string) *GRPCHealth {
	return &GRPCHealth{address: address, service: service}
}

func (h *GRPCHealth) Connect() error {
	conn, err := grpc.NewClient(h.address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return fmt.Errorf("grpc health dial: %w", err)
	}
	h.conn = conn
	h.client = healthpb.NewHealthClient(conn)
	slog.Info("grpc health client connected", "address", h.address)
	return nil
}

func (h *GRPCHealth) Close() error {
	if h.conn != nil {
		return h.conn.Close()
	}
	return nil
}

// Check returns nil when the backend reports SERVING.
func (h *GRPCHealth) Check(ctx context.Context) error {
	if h.client == nil {
		return fmt.Errorf("grpc health: not connected to %s", h.address)
	}
	resp, err := h.client.Check(ctx, &healthpb.HealthCheckRequest{Service: h.service})
	if err != nil {
		return fmt.Errorf("grpc health: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("grpc health: %s reports %s", h.address, resp.GetStatus())
	}
	return nil
}

// WithGRPCHealth wraps a Store so that Health consults the gRPC endpoint as well.
func WithGRPCHealth(s Store, h *GRPCHealth) Store {
	return &grpcCheckedStore{Store: s, health: h}
}

type grpcCheckedStore struct {
	Store
	health *GRPCHealth
}

func (s *grpcCheckedStore) Health(ctx context.Context) error {
	if err := s.health.Check(ctx); err != nil {
		return err
	}
	return s.Store.Health(ctx)
}
