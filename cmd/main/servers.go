package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	pb "candle-replay/src/grpc_control"
	"candle-replay/src/logger"
	"candle-replay/src/models"
	"candle-replay/src/server"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const shutdownTimeout = 10 * time.Second

// -----------------------------------------------------------------------------

// startServers runs the replay server and the gRPC control server until ctx is
// cancelled or one of them fails, then stops both.
func startServers(ctx context.Context, srv *server.ReplayServer, config *models.MConfig, appLogger *logger.Logger) error {
	addr := fmt.Sprintf("%s:%d", config.GrpcHost, config.GrpcPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on %s: %w", addr, err)
	}

	grpcServer := grpc.NewServer()
	controlService := pb.NewControlService(srv, logger.NewLogger(config, "ControlService"))
	pb.RegisterReplayControlServer(grpcServer, controlService)

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return srv.Start()
	})

	group.Go(func() error {
		appLogger.Info("Starting gRPC Control Server on %s", addr)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		grpcServer.GracefulStop()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
