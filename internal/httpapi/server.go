package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"CrewPublisher/internal/domain"
)

const defaultMaxBodyBytes = 1 << 20

// Runner executes one crew run for an API request.
type Runner interface {
	Run(ctx context.Context, req domain.RunRequest) (string, error)
}

// Settings configures the HTTP listener.
type Settings struct {
	Name              string
	Addr              string
	ReadHeaderTimeout time.Duration
	MaxBodyBytes      int64
}

// Server exposes the crew over HTTP. Requests block until the run, publication
// included, has finished; no write timeout is applied.
type Server struct {
	settings Settings
	runner   Runner
	logger   *slog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

type runAgentRequest struct {
	Topic            *string `json:"topic"`
	AuthorName       *string `json:"author_name"`
	AuthorPictureURL string  `json:"author_picture_url"`
	CoverImageURL    string  `json:"cover_image_url"`
}

type runAgentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

// NewServer prepares a server; call Start to bind it.
func NewServer(settings Settings, runner Runner, logger *slog.Logger) *Server {
	if settings.MaxBodyBytes <= 0 {
		settings.MaxBodyBytes = defaultMaxBodyBytes
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{settings: settings, runner: runner, logger: logger}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/run-agent", s.handleRunAgent)
	return mux
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("httpapi: server already started")
	}

	listener, err := net.Listen("tcp", s.settings.Addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen %s: %w", s.settings.Addr, err)
	}

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.settings.ReadHeaderTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.listener = listener
	s.server = server

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve failed", "error", err)
		}
	}()
	s.logger.Info("listening", "addr", listener.Addr().String())
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight runs to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.server = nil
	s.listener = nil
	return nil
}

// Addr returns the bound address once the server has started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, detailResponse{Detail: "Not Found"})
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", fmt.Sprintf("%s, %s", http.MethodGet, http.MethodHead))
		writeJSON(w, http.StatusMethodNotAllowed, detailResponse{Detail: "Method Not Allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": s.settings.Name + " is running"})
}

func (s *Server) handleRunAgent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, detailResponse{Detail: "Method Not Allowed"})
		return
	}

	req, err := decodeRunAgent(w, r, s.settings.MaxBodyBytes)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, detailResponse{Detail: err.Error()})
		return
	}

	result, err := s.runner.Run(r.Context(), req)
	if err != nil {
		s.logger.Error("run-agent failed", "topic", req.Topic, "error", err)
		writeJSON(w, http.StatusInternalServerError, detailResponse{
			Detail: "An error occurred while running the agent: " + err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, runAgentResponse{
		Status:  "success",
		Message: "Agent executed successfully",
		Result:  result,
	})
}

func decodeRunAgent(w http.ResponseWriter, r *http.Request, limit int64) (domain.RunRequest, error) {
	reader := http.MaxBytesReader(w, r.Body, limit)
	defer reader.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.RunRequest{}, fmt.Errorf("payload exceeds %d bytes", limit)
		}
		return domain.RunRequest{}, fmt.Errorf("unable to read body")
	}

	var payload runAgentRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.RunRequest{}, fmt.Errorf("invalid JSON body")
	}
	if payload.Topic == nil {
		return domain.RunRequest{}, fmt.Errorf("field required: topic")
	}
	if payload.AuthorName == nil {
		return domain.RunRequest{}, fmt.Errorf("field required: author_name")
	}

	return domain.RunRequest{
		Topic:            *payload.Topic,
		AuthorName:       *payload.AuthorName,
		AuthorPictureURL: payload.AuthorPictureURL,
		CoverImageURL:    payload.CoverImageURL,
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
