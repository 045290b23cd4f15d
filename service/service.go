package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-matrix/metrics"
)

const (
	DefaultControlAddr = "127.0.0.1:7310"
)

// Config selects the listen addresses. An empty address disables the server.
type Config struct {
	ControlAddr string
	MetricsAddr string
	Log         log.Logger
}

// Service runs the control and metrics servers next to a session.
type Service struct {
	Control *ControlServer
	Metrics *MetricsServer

	cfg       Config
	log       log.Logger
	wg        sync.WaitGroup
	controlLn net.Listener
}

func New(base context.Context, cfg Config, ctl Controller) *Service {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	s := &Service{cfg: cfg, log: cfg.Log}
	if cfg.ControlAddr != "" {
		s.Control = NewControlServer(base, ctl, cfg.Log)
	}
	if cfg.MetricsAddr != "" {
		s.Metrics = NewMetricsServer()
	}
	return s
}

// Start binds both listeners and serves them in the background. Bind errors
// are returned; nothing keeps running when Start fails.
func (s *Service) Start() error {
	s.log.Info("service starting")

	var controlLn, metricsLn net.Listener
	var err error
	if s.Control != nil {
		controlLn, err = net.Listen("tcp", s.cfg.ControlAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on control address %s: %w", s.cfg.ControlAddr, err)
		}
	}
	if s.Metrics != nil {
		metricsLn, err = net.Listen("tcp", s.cfg.MetricsAddr)
		if err != nil {
			if controlLn != nil {
				_ = controlLn.Close()
			}
			return fmt.Errorf("failed to listen on metrics address %s: %w", s.cfg.MetricsAddr, err)
		}
	}

	if controlLn != nil {
		s.controlLn = controlLn
		s.serve("control", func() error { return s.Control.Serve(controlLn) })
	}
	if metricsLn != nil {
		s.log.Info("starting metrics server", "addr", metricsLn.Addr().String())
		s.serve("metrics", func() error { return s.Metrics.Serve(metricsLn) })
	}
	s.log.Info("service started")
	return nil
}

func (s *Service) serve(name string, fn func() error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("error running server", "server", name, "err", err)
			metrics.RecordErrorDetails(name+"_server", err)
		}
	}()
}

// ControlAddr is the bound control address, useful with port 0.
func (s *Service) ControlAddr() string {
	if s.controlLn == nil {
		return ""
	}
	return s.controlLn.Addr().String()
}

func (s *Service) Shutdown(ctx context.Context) error {
	s.log.Info("service shutting down")
	var errs []error
	if s.Control != nil {
		errs = append(errs, s.Control.Shutdown(ctx))
		s.log.Info("control server stopped")
	}
	if s.Metrics != nil {
		errs = append(errs, s.Metrics.Shutdown(ctx))
		s.log.Info("metrics stopped")
	}
	s.wg.Wait()
	s.log.Info("service stopped")
	return errors.Join(errs...)
}
