// Package server serves an application function over HTTP. Every request
// runs the application against an htmlui.Page. Submissions follow
// post/redirect/get, with their notices handed to the next page as a
// flash, and connected browsers are told over a websocket to rerun.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/untillpro/goutils/logger"

	"github.com/mesh-intelligence/crudforms/internal/watcher"
	"github.com/mesh-intelligence/crudforms/pkg/htmlui"
	"github.com/mesh-intelligence/crudforms/pkg/ui"
	"github.com/mesh-intelligence/crudforms/web"
)

// FlashParam is the query parameter naming the notices of a redirect.
const FlashParam = "_flash"

// maxFlashes bounds the notices kept for redirects nobody followed.
const maxFlashes = 256

var layout = template.Must(template.New("layout").Parse(web.LayoutHTML))

// Message is what the server sends to connected browsers.
type Message struct {
	Type string `json:"type"`
}

// Server is the HTTP surface of one application.
type Server struct {
	router   *mux.Router
	app      ui.App
	title    string
	upgrader websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*sync.Mutex // guards writes to the conn

	flashMu    sync.Mutex
	flashes    map[string][]htmlui.Notice
	flashOrder []string

	watcher *watcher.FileWatcher
}

// Option configures a Server.
type Option func(*Server)

// WithTitle sets the page title.
func WithTitle(title string) Option {
	return func(s *Server) { s.title = title }
}

// New returns a server running app.
func New(app ui.App, opts ...Option) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		app:     app,
		title:   "crudforms",
		clients: make(map[*websocket.Conn]*sync.Mutex),
		flashes: make(map[string][]htmlui.Notice),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.handlePage).Methods(http.MethodGet)
	s.router.HandleFunc("/", s.handleSubmit).Methods(http.MethodPost)
	s.router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query()
	notices := s.popFlash(state.Get(FlashParam))
	state.Del(FlashParam)

	page := htmlui.New(state, "")
	if err := page.Run(r.Context(), s.app); err != nil {
		logger.Error("server: rendering page:", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	data := struct {
		Title   string
		Notices []htmlui.Notice
		Body    template.HTML
		Action  string
		Flash   string
	}{s.title, append(notices, page.Notices()...), page.HTML(), htmlui.ActionField, FlashParam}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := layout.Execute(w, data); err != nil {
		logger.Error("server: writing page:", err)
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, fmt.Sprintf("Bad form: %v", err), http.StatusBadRequest)
		return
	}
	state := r.PostForm
	action := state.Get(htmlui.ActionField)
	state.Del(htmlui.ActionField)

	page := htmlui.New(state, action)
	if err := page.Run(r.Context(), s.app); err != nil {
		logger.Error("server: handling submission:", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	query := page.Query()
	if notices := page.Notices(); len(notices) > 0 {
		query.Set(FlashParam, s.pushFlash(notices))
	}
	target := "/"
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	if page.Pressed() {
		s.Broadcast()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warning("server: websocket upgrade:", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = new(sync.Mutex)
	n := len(s.clients)
	s.clientsMu.Unlock()
	logger.Verbose(fmt.Sprintf("server: websocket connected (total %d)", n))

	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, conn)
			n := len(s.clients)
			s.clientsMu.Unlock()
			conn.Close()
			logger.Verbose(fmt.Sprintf("server: websocket disconnected (remaining %d)", n))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast tells every connected browser to rerun.
func (s *Server) Broadcast() {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	if len(s.clients) == 0 {
		return
	}
	logger.Verbose(fmt.Sprintf("server: broadcasting rerun to %d clients", len(s.clients)))
	for conn, mu := range s.clients {
		go func() {
			mu.Lock()
			defer mu.Unlock()
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(Message{Type: "rerun"}); err != nil {
				logger.Warning("server: websocket write:", err)
			}
		}()
	}
}

// Clients returns the number of connected browsers.
func (s *Server) Clients() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) pushFlash(notices []htmlui.Notice) string {
	id := uuid.Must(uuid.NewV7()).String()

	s.flashMu.Lock()
	defer s.flashMu.Unlock()
	s.flashes[id] = notices
	s.flashOrder = append(s.flashOrder, id)
	for len(s.flashOrder) > maxFlashes {
		delete(s.flashes, s.flashOrder[0])
		s.flashOrder = s.flashOrder[1:]
	}
	return id
}

// popFlash returns and forgets the notices of id. Each flash is shown once.
func (s *Server) popFlash(id string) []htmlui.Notice {
	if id == "" {
		return nil
	}
	s.flashMu.Lock()
	defer s.flashMu.Unlock()
	notices, ok := s.flashes[id]
	if !ok {
		return nil
	}
	delete(s.flashes, id)
	for i, o := range s.flashOrder {
		if o == id {
			s.flashOrder = append(s.flashOrder[:i], s.flashOrder[i+1:]...)
			break
		}
	}
	return notices
}

// StartWatching broadcasts a rerun whenever the file at path changes, such
// as a database written by another process.
func (s *Server) StartWatching(path string, debounce time.Duration) error {
	fw, err := watcher.NewFileWatcher()
	if err != nil {
		return err
	}
	if err := fw.Watch(path, func(string) { s.Broadcast() }, debounce); err != nil {
		fw.Close()
		return err
	}
	fw.Start()
	s.watcher = fw
	logger.Info("server: watching", filepath.Base(path))
	return nil
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops the file watcher and disconnects browsers.
func (s *Server) Close() error {
	s.clientsMu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clientsMu.Unlock()

	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
