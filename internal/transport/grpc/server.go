// grpc содержит служебный gRPC-сервер auth-сервиса: grpc.health.v1 и
// метрики go-grpc-prometheus. Публичный API сервиса обслуживается по HTTP
// (см. transport/http); здесь только пробы для оркестратора.
//
// Статус health и флаг готовности меняются вместе через SetServing, чтобы
// gRPC-проба и HTTP /healthz отвечали согласованно.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// OpsServer — gRPC-сервер проб с флагом готовности.
type OpsServer struct {
	srv    *grpc.Server
	health *health.Server
	ready  atomic.Bool
	log    *slog.Logger
}

// NewOpsServer собирает gRPC-сервер с цепочкой Recover -> Logging -> Timeout ->
// prometheus и зарегистрированным health-сервисом. Изначально NOT_SERVING.
func NewOpsServer(lg *slog.Logger, timeout time.Duration) *OpsServer {
	if lg == nil {
		lg = slog.Default()
	}

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			Recover(lg),
			Logging(lg),
			Timeout(timeout),
			grpc_prometheus.UnaryServerInterceptor,
		),
		grpc.ChainStreamInterceptor(
			grpc_prometheus.StreamServerInterceptor,
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	grpc_prometheus.Register(srv)

	o := &OpsServer{srv: srv, health: hs, log: lg}
	o.SetServing(false)

	return o
}

// SetServing переключает health-статус и флаг готовности.
func (o *OpsServer) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}

	o.health.SetServingStatus("", st)
	o.ready.Store(ok)
}

// Ready сообщает, готов ли сервис принимать трафик.
func (o *OpsServer) Ready() bool { return o.ready.Load() }

// Serve блокируется до остановки сервера. Штатная остановка не ошибка.
func (o *OpsServer) Serve(lis net.Listener) error {
	const op = "transport.grpc.server.Serve"

	o.log.Info("grpc_listen_start", slog.String("addr", lis.Addr().String()))

	if err := o.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Stop переводит статус в NOT_SERVING и останавливает сервер. Если ctx истёк
// раньше завершения активных вызовов, соединения рвутся принудительно.
func (o *OpsServer) Stop(ctx context.Context) {
	o.SetServing(false)

	done := make(chan struct{})
	go func() {
		o.srv.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		o.log.Info("grpc_stopped")
	case <-ctx.Done():
		o.log.Warn("grpc_force_stop")
		o.srv.Stop()
	}
}
