package server

import (
	"encoding/json" // Package for JSON encoding of telemetry payloads
	"net"           // Package for network I/O
	"net/http"      // Package for the HTTP server
	"os"            // Package for OS operations
	"time"          // Package for time-related operations

	log "github.com/sirupsen/logrus" // Logging library

	"github.com/helvethink/package-release-orchestrator/pkg/config"   // Configuration package
	"github.com/helvethink/package-release-orchestrator/pkg/monitor"  // Monitoring package
	"github.com/helvethink/package-release-orchestrator/pkg/registry" // Registry client package
	"github.com/helvethink/package-release-orchestrator/pkg/schemas"  // Schemas package
	"github.com/helvethink/package-release-orchestrator/pkg/store"    // Storage package
)

// Server represents an HTTP server exposing internal monitoring telemetry.
type Server struct {
	registryClient           *registry.Client                                   // Registry client for API interactions
	cfg                      config.Config                                      // Configuration for the server
	store                    store.Store                                        // Storage interface for data persistence
	taskSchedulingMonitoring map[schemas.TaskType]*monitor.TaskSchedulingStatus // Task scheduling statuses
}

// NewServer creates a new Server instance.
func NewServer(
	registryClient *registry.Client, // Registry client instance
	c config.Config, // Configuration instance
	st store.Store, // Storage instance
	tsm map[schemas.TaskType]*monitor.TaskSchedulingStatus, // Task scheduling monitoring map
) (s *Server) {
	// Initialize and return a new Server instance
	s = &Server{
		registryClient:           registryClient,
		cfg:                      c,
		store:                    st,
		taskSchedulingMonitoring: tsm,
	}

	return
}

// Serve starts the HTTP server to listen for incoming monitoring connections.
func (s *Server) Serve() {
	// Check if the internal monitoring listener address is set
	if s.cfg.Global.InternalMonitoringListenerAddress == nil {
		log.Info("internal monitoring listener address not set")
		return
	}

	// Log the internal monitoring listener address details
	log.WithFields(log.Fields{
		"scheme": s.cfg.Global.InternalMonitoringListenerAddress.Scheme,
		"host":   s.cfg.Global.InternalMonitoringListenerAddress.Host,
		"path":   s.cfg.Global.InternalMonitoringListenerAddress.Path,
	}).Info("internal monitoring listener set")

	// Register the monitoring endpoints
	mux := http.NewServeMux()
	mux.HandleFunc("/telemetry", s.TelemetryHandler)
	mux.HandleFunc("/config", s.ConfigHandler)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var (
		l   net.Listener
		err error
	)

	// Handle different listener schemes
	switch s.cfg.Global.InternalMonitoringListenerAddress.Scheme {
	case "unix":
		// Resolve the Unix address
		unixAddr, err := net.ResolveUnixAddr("unix", s.cfg.Global.InternalMonitoringListenerAddress.Path)
		if err != nil {
			log.WithError(err).Fatal()
		}

		// Remove the socket file if it already exists
		if _, err := os.Stat(s.cfg.Global.InternalMonitoringListenerAddress.Path); err == nil {
			if err := os.Remove(s.cfg.Global.InternalMonitoringListenerAddress.Path); err != nil {
				log.WithError(err).Fatal()
			}
		}

		// Ensure the socket file is removed when the server exits
		defer func(path string) {
			if err := os.Remove(path); err != nil {
				log.WithError(err).Fatal()
			}
		}(s.cfg.Global.InternalMonitoringListenerAddress.Path)

		// Listen on the Unix socket
		if l, err = net.ListenUnix("unix", unixAddr); err != nil {
			log.WithError(err).Fatal()
		}

	default:
		// Listen on the network address
		if l, err = net.Listen(s.cfg.Global.InternalMonitoringListenerAddress.Scheme, s.cfg.Global.InternalMonitoringListenerAddress.Host); err != nil {
			log.WithError(err).Fatal()
		}
	}

	// Ensure the listener is closed when the server exits
	defer l.Close() // nolint: errcheck

	// Start serving the HTTP server
	if err = srv.Serve(l); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal()
	}
}

// ConfigHandler serves the running configuration as JSON.
func (s *Server) ConfigHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// The rendered configuration has its sensitive values masked
	if err := json.NewEncoder(w).Encode(monitor.Config{
		Content: s.cfg.ToYAML(),
	}); err != nil {
		log.WithError(err).Warn("encoding config payload")
	}
}

// TelemetryHandler serves a snapshot of the orchestrator telemetry as JSON.
func (s *Server) TelemetryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Initialize a telemetry payload
	telemetry := monitor.Telemetry{}

	// Calculate registry API usage
	telemetry.RegistryAPIUsage = float64(s.registryClient.RateCounter.Rate()) / float64(s.cfg.Registry.MaximumRequestsPerSecond)
	if telemetry.RegistryAPIUsage > 1 {
		telemetry.RegistryAPIUsage = 1
	}

	// Set registry API requests count
	telemetry.RegistryAPIRequestsCount = s.registryClient.RequestsCounter.Load()

	// Calculate registry API rate limit usage
	if s.registryClient.RequestsLimit > 0 {
		telemetry.RegistryAPIRateLimit = float64(s.registryClient.RequestsRemaining) / float64(s.registryClient.RequestsLimit)
		if telemetry.RegistryAPIRateLimit > 1 {
			telemetry.RegistryAPIRateLimit = 1
		}
	}

	// Set registry API limit remaining
	telemetry.RegistryAPILimitRemaining = uint64(s.registryClient.RequestsRemaining)

	// Get the count of currently queued tasks
	queuedTasks, err := s.store.CurrentlyQueuedTasksCount(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Calculate tasks buffer usage
	telemetry.TasksBufferUsage = float64(queuedTasks) / float64(s.cfg.Registry.MaximumJobsQueueSize)

	// Get the count of executed tasks
	if telemetry.TasksExecutedCount, err = s.store.ExecutedTasksCount(ctx); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Get the count of units
	if telemetry.Units.Count, err = s.store.UnitsCount(ctx); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Get the count of run reports
	if telemetry.RunReports.Count, err = s.store.RunReportsCount(ctx); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Get the count of metrics
	if telemetry.Metrics.Count, err = s.store.MetricsCount(ctx); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Set last and next release run times for units and run reports
	if status, ok := s.taskSchedulingMonitoring[schemas.TaskTypeRelease]; ok {
		telemetry.Units.LastRun = status.Last
		telemetry.Units.NextRun = status.Next
		telemetry.RunReports.LastRun = status.Last
		telemetry.RunReports.NextRun = status.Next
	}

	// Set last and next garbage collection times for units
	if status, ok := s.taskSchedulingMonitoring[schemas.TaskTypeGarbageCollectUnits]; ok {
		telemetry.Units.LastGC = status.Last
		telemetry.Units.NextGC = status.Next
	}

	// Set last and next garbage collection times for run reports
	if status, ok := s.taskSchedulingMonitoring[schemas.TaskTypeGarbageCollectRunReports]; ok {
		telemetry.RunReports.LastGC = status.Last
		telemetry.RunReports.NextGC = status.Next
	}

	// Set last and next garbage collection times for metrics
	if status, ok := s.taskSchedulingMonitoring[schemas.TaskTypeGarbageCollectMetrics]; ok {
		telemetry.Metrics.LastGC = status.Last
		telemetry.Metrics.NextGC = status.Next
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(telemetry); err != nil {
		log.WithError(err).Warn("encoding telemetry payload")
	}
}
