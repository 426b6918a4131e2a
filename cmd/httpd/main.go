// Command httpd serves static files from a document root over HTTP/1.1.
//
//	httpd [-config file] [-log-level LEVEL] [-root dir] port
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/gotcp/httpd"
	"github.com/gotcp/httpd/internal/config"
	"github.com/gotcp/httpd/internal/logger"
	"github.com/gotcp/httpd/internal/metrics"
	"github.com/gotcp/httpd/internal/metrics/prometheus"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML, TOML or JSON config file")
	logLevel := flag.String("log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	docRoot := flag.String("root", "", "Document root served to clients")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] port\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	port, err := strconv.Atoi(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid port %q\n", flag.Arg(0))
		os.Exit(1)
	}

	if err := run(*configPath, *logLevel, *docRoot, port); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run(configPath string, logLevel string, docRoot string, port int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.Server.Port = port
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if docRoot != "" {
		cfg.Server.DocRoot = docRoot
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logCloser, err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	var ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		var metricsServer = metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port})
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				logger.Error("%v", err)
			}
		}()
	}

	var s = cfg.Server
	srv, err := httpd.New(s.DocRoot, s.Threads, s.MaxRequests)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	srv.SetReadBuffer(s.ReadBuffer)
	srv.SetWriteBuffer(s.WriteBuffer)
	srv.SetEpollEvents(s.MaxEvents)
	srv.SetMaxConnections(s.MaxConnections)
	srv.SetTimeslot(s.Timeslot)
	srv.SetDetectContentType(s.DetectContentType)
	srv.SetEventThreads(s.EventThreads)
	srv.SetMetrics(prometheus.NewServerMetrics())
	srv.SetHandleSignals(true)

	logger.Info("document root %s, %d threads, queue depth %d", s.DocRoot, s.Threads, s.MaxRequests)
	if err := srv.Start(s.Host, s.Port); err != nil && !errors.Is(err, httpd.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
