// file: internal/gateway/server.go

package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"webhook-gateway/config"
	"webhook-gateway/internal/broker"
	"webhook-gateway/internal/logger"
	"webhook-gateway/internal/metrics"
	"webhook-gateway/internal/sender"
	"webhook-gateway/internal/signature"
)

// Publisher forwards an authenticated webhook downstream.
type Publisher interface {
	Publish(ctx context.Context, msg broker.Message) error
}

// Route binds a sender to the verifier holding its public key.
type Route struct {
	Sender   sender.Sender
	Verifier *signature.Verifier
}

// webhookJob is an authenticated webhook waiting to be forwarded.
type webhookJob struct {
	msg broker.Message
}

// InboundServer authenticates sender callbacks and hands accepted ones to a
// fixed-size worker pool for forwarding. A full queue is reported as 503.
type InboundServer struct {
	logger     *logger.Logger
	metrics    *metrics.Metrics
	publisher  Publisher
	routes     []Route
	serverCfg  config.HTTPServerConfig
	httpServer *http.Server

	workQueue chan webhookJob
	wg        sync.WaitGroup
	stopOnce  sync.Once

	// queueMu guards stopping; enqueues hold the read lock so the queue is
	// never closed under a sender.
	queueMu  sync.RWMutex
	stopping bool
}

// NewInboundServer creates the server and its work queue. Workers are not
// started until Start.
func NewInboundServer(
	log *logger.Logger,
	m *metrics.Metrics,
	publisher Publisher,
	routes []Route,
	serverCfg config.HTTPServerConfig,
) *InboundServer {
	if serverCfg.InboundWorkerCount <= 0 {
		serverCfg.InboundWorkerCount = 10
		log.Info("InboundWorkerCount not set, using default", "count", serverCfg.InboundWorkerCount)
	}
	if serverCfg.InboundQueueSize <= 0 {
		serverCfg.InboundQueueSize = 100
		log.Info("InboundQueueSize not set, using default", "size", serverCfg.InboundQueueSize)
	}
	if serverCfg.MaxBodyBytes <= 0 {
		serverCfg.MaxBodyBytes = 10 * 1024 * 1024
	}

	return &InboundServer{
		logger:    log,
		metrics:   m,
		publisher: publisher,
		routes:    routes,
		serverCfg: serverCfg,
		workQueue: make(chan webhookJob, serverCfg.InboundQueueSize),
	}
}

// Handler returns the mux serving every sender path plus health checks.
func (s *InboundServer) Handler() http.Handler {
	mux := http.NewServeMux()

	for _, route := range s.routes {
		mux.HandleFunc(route.Sender.Path, s.webhookHandler(route))
		s.logger.Info("registered webhook handler",
			"sender", route.Sender.Name,
			"path", route.Sender.Path,
			"signature", route.Sender.SignatureSource(),
			"payload", route.Sender.PayloadSource(),
			"encoding", route.Sender.Encoding.String())
	}

	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/healthz", s.healthHandler)

	return mux
}

// Start begins the HTTP server and the worker pool.
func (s *InboundServer) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:           s.serverCfg.Address,
		Handler:        RecoveryMiddleware(s.logger, s.Handler()),
		ReadTimeout:    s.serverCfg.ReadTimeout,
		WriteTimeout:   s.serverCfg.WriteTimeout,
		IdleTimeout:    s.serverCfg.IdleTimeout,
		MaxHeaderBytes: s.serverCfg.MaxHeaderBytes,
	}

	s.startWorkers(ctx)

	go func() {
		s.logger.Info("starting HTTP inbound server",
			"address", s.serverCfg.Address,
			"senders", len(s.routes),
			"workers", s.serverCfg.InboundWorkerCount,
			"queueSize", s.serverCfg.InboundQueueSize)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// startWorkers launches the fixed pool of goroutines. Workers drain the queue
// until it is closed, so accepted webhooks are still forwarded after ctx is
// cancelled.
func (s *InboundServer) startWorkers(ctx context.Context) {
	publishCtx := context.WithoutCancel(ctx)

	for i := 0; i < s.serverCfg.InboundWorkerCount; i++ {
		s.wg.Add(1)
		workerID := i + 1
		go func() {
			defer s.wg.Done()
			s.logger.Debug("starting inbound worker", "workerID", workerID)
			for job := range s.workQueue {
				s.forward(publishCtx, job.msg)
			}
			s.logger.Debug("inbound worker stopped", "workerID", workerID)
		}()
	}
}

// Stop shuts down the HTTP server, then lets workers finish queued jobs.
func (s *InboundServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP inbound server and workers")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to gracefully shutdown HTTP server", "error", err)
		}
	}

	s.stopOnce.Do(func() {
		s.queueMu.Lock()
		s.stopping = true
		s.logger.Info("closing work queue, waiting for workers to finish in-flight jobs",
			"pending", len(s.workQueue))
		close(s.workQueue)
		s.queueMu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("HTTP inbound server and all workers stopped successfully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("workers did not finish before shutdown deadline", "pending", len(s.workQueue))
		return ctx.Err()
	}
}

// QueueDepth returns the number of accepted webhooks not yet forwarded.
func (s *InboundServer) QueueDepth() int {
	return len(s.workQueue)
}

// webhookHandler authenticates a sender callback before anything else
// touches it. Every verification failure gets the same 401.
func (s *InboundServer) webhookHandler(route Route) http.HandlerFunc {
	name := route.Sender.Name
	path := route.Sender.Path

	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		status := http.StatusAccepted
		defer func() {
			s.observeRequest(path, r.Method, status, start)
		}()

		s.logger.Debug("webhook received",
			"sender", name,
			"method", r.Method,
			"remoteAddr", r.RemoteAddr,
			"contentLength", r.ContentLength)

		if r.Method != http.MethodPost {
			status = http.StatusMethodNotAllowed
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, status, errorResponse{Error: "method not allowed"})
			return
		}

		defer r.Body.Close()
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.serverCfg.MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status = http.StatusRequestEntityTooLarge
				s.logger.Warn("webhook body too large", "sender", name, "limit", tooLarge.Limit)
				writeJSON(w, status, errorResponse{Error: "request body too large"})
				return
			}
			status = http.StatusBadRequest
			s.logger.Error("failed to read request body", "sender", name, "error", err)
			writeJSON(w, status, errorResponse{Error: "bad request"})
			return
		}

		env, err := route.Sender.Extract(r.Header, body)
		if err != nil {
			status = http.StatusUnauthorized
			s.logger.Warn("rejected webhook", "sender", name, "reason", err.Error())
			writeJSON(w, status, errorResponse{Error: "unauthorized"})
			return
		}

		if !route.Verifier.Verify(env.Payload, env.Signature) {
			status = http.StatusUnauthorized
			s.logger.Warn("rejected webhook", "sender", name, "reason", "signature verification failed")
			writeJSON(w, status, errorResponse{Error: "unauthorized"})
			return
		}

		msg := broker.NewMessage(name, route.Sender.Subject, env.Payload)
		if route.Sender.PayloadField == "" {
			msg.ContentType = r.Header.Get("Content-Type")
		}

		if !s.enqueue(webhookJob{msg: msg}) {
			status = http.StatusServiceUnavailable
			s.logger.Warn("inbound work queue is full or closed, rejecting request",
				"sender", name,
				"queueSize", s.serverCfg.InboundQueueSize)
			writeJSON(w, status, errorResponse{Error: "server busy, retry later"})
			return
		}
		writeJSON(w, status, acceptedResponse{Status: "accepted", ID: msg.ID})
	}
}

// enqueue hands a job to the workers without blocking. It reports false when
// the queue is full or the server is stopping.
func (s *InboundServer) enqueue(job webhookJob) bool {
	s.queueMu.RLock()
	defer s.queueMu.RUnlock()
	if s.stopping {
		return false
	}
	select {
	case s.workQueue <- job:
		return true
	default:
		return false
	}
}

func (s *InboundServer) forward(ctx context.Context, msg broker.Message) {
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Error("failed to forward webhook",
			"id", msg.ID,
			"sender", msg.Sender,
			"subject", msg.Subject,
			"error", err)
		return
	}
	s.logger.Debug("forwarded webhook",
		"id", msg.ID,
		"sender", msg.Sender,
		"subject", msg.Subject)
}

func (s *InboundServer) observeRequest(path, method string, status int, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncHTTPInboundRequestsTotal(path, method, strconv.Itoa(status))
	s.metrics.ObserveHTTPRequestDuration(path, method, time.Since(start).Seconds())
}

// healthHandler responds to health check requests
func (s *InboundServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type errorResponse struct {
	Error string `json:"error"`
}

type acceptedResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
