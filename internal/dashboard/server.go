package dashboard

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/justin4957/zeekreport/internal/config"
	"github.com/justin4957/zeekreport/pkg/models"
)

// Server publishes the latest analysis summary over HTTP and websocket
type Server struct {
	config    config.DashboardConfig
	logger    *zap.Logger
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan []byte

	latestMu   sync.RWMutex
	latest     *models.Summary
	latestJSON []byte
}

// NewServer creates a new dashboard server
func NewServer(cfg config.DashboardConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		config: cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // served on a local address only
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 16),
	}
}

// Handler returns the dashboard routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/report", s.handleReport)
	mux.HandleFunc("/", s.handleIndex)
	return mux
}

// Start serves the dashboard until ctx is cancelled, publishing every
// summary received on input.
func (s *Server) Start(ctx context.Context, input <-chan *models.Summary) {
	go s.broadcastLoop(ctx)
	go s.handleInput(ctx, input)

	server := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info("dashboard listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("dashboard server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
	s.closeClients()
}

func (s *Server) handleInput(ctx context.Context, input <-chan *models.Summary) {
	for {
		select {
		case <-ctx.Done():
			return
		case summary, ok := <-input:
			if !ok {
				return
			}
			s.Publish(summary)
		}
	}
}

// Publish records summary as the latest and pushes it to connected clients
func (s *Server) Publish(summary *models.Summary) {
	data, err := sonic.Marshal(summary)
	if err != nil {
		s.logger.Error("failed to encode summary", zap.Error(err))
		return
	}

	s.latestMu.Lock()
	s.latest = summary
	s.latestJSON = data
	s.latestMu.Unlock()

	select {
	case s.broadcast <- data:
	default:
		s.logger.Warn("broadcast queue full, dropping update", zap.String("run_id", summary.RunID))
	}
}

// Latest returns the most recently published summary
func (s *Server) Latest() *models.Summary {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	return s.latest
}

func (s *Server) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-s.broadcast:
			s.clientsMu.Lock()
			for client := range s.clients {
				client.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					s.logger.Debug("websocket write error", zap.Error(err))
					client.Close()
					delete(s.clients, client)
				}
			}
			s.clientsMu.Unlock()
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade error", zap.Error(err))
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	s.clientsMu.Unlock()
	s.logger.Debug("websocket client connected", zap.String("remote", r.RemoteAddr))

	// new clients get the current state straight away
	s.latestMu.RLock()
	current := s.latestJSON
	s.latestMu.RUnlock()
	if current != nil {
		s.clientsMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, current)
		s.clientsMu.Unlock()
		if err != nil {
			s.removeClient(conn)
			return
		}
	}

	// Keep connection alive
	for {
		if _, _, err := conn.NextReader(); err != nil {
			s.removeClient(conn)
			break
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if s.clients[conn] {
		conn.Close()
		delete(s.clients, conn)
	}
}

func (s *Server) closeClients() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for client := range s.clients {
		client.Close()
		delete(s.clients, client)
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.latestMu.RLock()
	data := s.latestJSON
	s.latestMu.RUnlock()

	if data == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	latest := s.Latest()
	if latest == nil || latest.ReportPath == "" {
		http.Error(w, "no report generated yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	http.ServeFile(w, r, latest.ReportPath)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Zeek HTTP Log Report</title>
    <style>
        body { font: 14px/1.4 Helvetica, Arial, sans-serif; margin: 2em auto; max-width: 960px; color: #222; }
        header { border-bottom: 2px solid #36c; margin-bottom: 1em; }
        #counters { display: flex; flex-wrap: wrap; gap: 12px; }
        .counter { flex: 1 0 200px; border: 1px solid #ccc; border-radius: 4px; padding: 10px 14px; }
        .counter.banned { border-color: #c33; background: #fdf0f0; }
        .counter b { display: block; font-size: 1.8em; }
        .muted { color: #777; font-size: 0.9em; }
    </style>
</head>
<body>
    <header>
        <h1>Zeek HTTP Log Report</h1>
        <p class="muted" id="status">Connecting...</p>
        <p class="muted" id="run"></p>
    </header>

    <section id="counters"></section>

    <h2>Port services</h2>
    <p id="services">none</p>

    <p><a href="/report">Latest PDF report</a></p>

    <script>
        const ws = new WebSocket('ws://' + window.location.host + '/ws');
        const statusEl = document.getElementById('status');
        const runEl = document.getElementById('run');
        const countersEl = document.getElementById('counters');
        const servicesEl = document.getElementById('services');

        ws.onopen = () => {
            statusEl.textContent = 'Connected';
        };

        ws.onclose = () => {
            statusEl.textContent = 'Disconnected';
        };

        ws.onmessage = (event) => {
            const data = JSON.parse(event.data);
            runEl.textContent = 'Run ' + data.run_id + ' of ' + data.archive + ' at ' + data.generated_at;

            countersEl.replaceChildren(...(data.counters || []).map((c) => {
                const el = document.createElement('div');
                el.className = 'counter';
                if (c.name === 'banned_hosts_detected' && c.value > 0) {
                    el.classList.add('banned');
                }
                const value = document.createElement('b');
                value.textContent = c.value;
                el.append(value, c.name.replace(/_/g, ' '));
                return el;
            }));

            servicesEl.textContent = (data.port_services || []).join(', ') || 'none';
        };
    </script>
</body>
</html>`
