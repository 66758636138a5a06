package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/flippback/prebid-flipp/config"
	"github.com/flippback/prebid-flipp/metrics"
	prometheusmetrics "github.com/flippback/prebid-flipp/metrics/prometheus"
	"github.com/golang/glog"
)

// Listen blocks until the process receives SIGTERM or SIGINT, serving bid requests on the main
// port, build info on the admin port and, when a port is configured, Prometheus metrics.
// Every listener is opened before any server starts, so a bad address starts nothing.
func Listen(cfg *config.Configuration, handler http.Handler, adminHandler http.Handler, promMetrics *prometheusmetrics.Metrics) error {
	var me metrics.MetricsEngine = &metrics.NilMetricsEngine{}
	if promMetrics != nil {
		me = promMetrics
	}

	servers, err := openServers(cfg, handler, adminHandler, promMetrics, me)
	if err != nil {
		return err
	}

	stopSignals := make(chan os.Signal, 1)
	signal.Notify(stopSignals, syscall.SIGTERM, syscall.SIGINT)

	// Fan any process-stopper signals out to each server for graceful shutdowns.
	done := make(chan struct{})
	stoppers := make([]chan<- os.Signal, 0, len(servers))
	for _, s := range servers {
		stopper := make(chan os.Signal)
		stoppers = append(stoppers, stopper)
		go shutdownAfterSignals(s.server, stopper, done)
		go runServer(s.server, s.name, s.listener)
	}

	wait(stopSignals, done, stoppers...)
	return nil
}

type listeningServer struct {
	name     string
	server   *http.Server
	listener net.Listener
}

func openServers(cfg *config.Configuration, handler, adminHandler http.Handler, promMetrics *prometheusmetrics.Metrics, me metrics.MetricsEngine) ([]listeningServer, error) {
	var servers []listeningServer
	open := func(name string, server *http.Server, me metrics.MetricsEngine) error {
		listener, err := newListener(server.Addr, me)
		if err != nil {
			for _, s := range servers {
				s.listener.Close()
			}
			return fmt.Errorf("%s server: %v", name, err)
		}
		servers = append(servers, listeningServer{name, server, listener})
		return nil
	}

	if err := open("Main", newMainServer(cfg, handler), me); err != nil {
		return nil, err
	}
	if err := open("Admin", newAdminServer(cfg, adminHandler), nil); err != nil {
		return nil, err
	}
	if cfg.Metrics.Prometheus.Port != 0 {
		prometheusServer, err := newPrometheusServer(cfg, promMetrics)
		if err == nil {
			err = open("Prometheus", prometheusServer, nil)
		}
		if err != nil {
			for _, s := range servers {
				s.listener.Close()
			}
			return nil, err
		}
	}
	return servers, nil
}

func newAdminServer(cfg *config.Configuration, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:    cfg.Host + ":" + strconv.Itoa(cfg.AdminPort),
		Handler: handler,
	}
}

func newMainServer(cfg *config.Configuration, handler http.Handler) *http.Server {
	var serverHandler = handler
	if cfg.EnableGzip {
		serverHandler = gziphandler.GzipHandler(handler)
	}

	return &http.Server{
		Addr:         cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Handler:      serverHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}

func runServer(server *http.Server, name string, listener net.Listener) {
	glog.Infof("%s server starting on: %s", name, server.Addr)
	err := server.Serve(listener)
	if err != http.ErrServerClosed {
		glog.Errorf("%s server quit with error: %v", name, err)
	}
}

func newListener(address string, me metrics.MetricsEngine) (net.Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("Error listening for TCP connections on %s: %v", address, err)
	}

	if me != nil {
		ln = &monitorableListener{ln, me}
	}
	return ln, nil
}

func wait(inbound <-chan os.Signal, done <-chan struct{}, outbound ...chan<- os.Signal) {
	sig := <-inbound

	for i := 0; i < len(outbound); i++ {
		go sendSignal(outbound[i], sig)
	}

	for i := 0; i < len(outbound); i++ {
		<-done
	}
}

func shutdownAfterSignals(server *http.Server, stopper <-chan os.Signal, done chan<- struct{}) {
	sig := <-stopper

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var s struct{}
	glog.Infof("Stopping %s because of signal: %s", server.Addr, sig.String())
	if err := server.Shutdown(ctx); err != nil {
		glog.Errorf("Failed to shutdown %s: %v", server.Addr, err)
	}
	done <- s
}

func sendSignal(to chan<- os.Signal, sig os.Signal) {
	to <- sig
}
