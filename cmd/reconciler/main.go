package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
	"k8s.io/klog/v2/klogr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"kpt.dev/appsync/pkg/client/restconfig"
	"kpt.dev/appsync/pkg/metrics"
	"kpt.dev/appsync/pkg/parse"
	"kpt.dev/appsync/pkg/profiler"
	"kpt.dev/appsync/pkg/reconcilermanager"
	"kpt.dev/appsync/pkg/service"
	"kpt.dev/appsync/pkg/syncstatus"
	"kpt.dev/appsync/pkg/util/log"
)

var (
	configPath = flag.String("config", envOr(reconcilermanager.ConfigPathKey, "/etc/appsync/apps.yaml"),
		"Path to the file listing the applications to sync.")

	kubeconfig = flag.String("kubeconfig", os.Getenv(reconcilermanager.KubeconfigKey),
		"Path to a kubeconfig file. Uses the in-cluster configuration when unset.")

	kubeContext = flag.String("context", "", "The kubeconfig context to use.")

	metricsAddr = flag.String("metrics-addr", envOr(reconcilermanager.MetricsAddrKey, reconcilermanager.DefaultMetricsAddr),
		"The address the HTTP surface binds to.")

	persistStatus = flag.Bool("persist-status", envBool(reconcilermanager.PersistStatusKey, true),
		"Save application statuses in ConfigMaps so they survive restarts.")

	shutdownTimeout = flag.Duration("shutdown-timeout", 30*time.Second,
		"How long to wait for running sync cycles and requests when shutting down.")
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func main() {
	log.Setup(nil)
	flag.Parse()
	logf.SetLogger(klogr.New())
	profiler.Service()

	cfg, err := reconcilermanager.LoadConfig(*configPath)
	if err != nil {
		klog.Fatalf("Invalid configuration: %v", err)
	}

	restConfig, err := restconfig.NewRestConfig(*kubeconfig, *kubeContext)
	if err != nil {
		klog.Fatalf("Failed to create rest config: %v", err)
	}
	c, err := client.New(restConfig, client.Options{})
	if err != nil {
		klog.Fatalf("Failed to create client: %v", err)
	}

	opts := reconcilermanager.Options{
		Client: c,
		Scoper: parse.RESTMapperScoper{Mapper: c.RESTMapper()},
	}
	if *persistStatus {
		opts.Persister = &syncstatus.ConfigMapPersister{Client: c}
	}
	mgr, err := reconcilermanager.NewManager(cfg, opts)
	if err != nil {
		klog.Fatalf("Failed to create %s: %v", reconcilermanager.ManagerName, err)
	}

	// Register the OpenCensus views
	if err := metrics.RegisterViews(); err != nil {
		klog.Fatalf("Failed to register OpenCensus views: %v", err)
	}
	// Register the Prometheus exporter
	exporter, err := metrics.RegisterPrometheusExporter()
	if err != nil {
		klog.Fatalf("Failed to register the Prometheus exporter: %v", err)
	}
	server := service.Server(*metricsAddr, service.NewHandler(mgr, exporter))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		klog.Infof("Serving on %s", *metricsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return mgr.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		klog.Errorf("%s exited: %v", reconcilermanager.ManagerName, err)
		klog.Flush()
		os.Exit(1)
	}
	klog.Infof("%s stopped", reconcilermanager.ManagerName)
	klog.Flush()
}
