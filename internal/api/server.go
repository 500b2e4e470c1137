package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/veil-sh/veil/internal/config"
	"github.com/veil-sh/veil/internal/detect"
	"github.com/veil-sh/veil/internal/session"
)

// Server is the thin HTTP facade over the detection engine and the
// per-session redaction caches. It is plumbing around the core, not part
// of it.
type Server struct {
	engine   *detect.Engine
	sessions *sessionStore
	limiter  *session.Limiter
	router   chi.Router
}

// NewServer wires the engine, session store, and rate limiter into a router.
func NewServer(engine *detect.Engine, cfg config.ServerConfig, cacheMaxEntries int) *Server {
	window := time.Duration(cfg.RateWindowSeconds) * time.Second
	if window <= 0 {
		window = time.Minute
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 30
	}

	s := &Server{
		engine:   engine,
		sessions: newSessionStore(cacheMaxEntries),
		limiter:  session.NewLimiter(limit, window),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/detect", s.handleDetect)
	r.Post("/v1/mask", s.handleMask)

	r.Route("/v1/sessions/{sessionID}/cache", func(r chi.Router) {
		r.Get("/", s.handleCacheExport)
		r.Post("/", s.handleCacheAdd)
		r.Post("/import", s.handleCacheImport)
		r.Post("/find", s.handleCacheFind)
		r.Delete("/", s.handleCacheClear)
		r.Delete("/{entryID}", s.handleCacheRemove)
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// sessionStore holds one redaction cache per client session. Caches are
// created on demand and never shared across sessions.
type sessionStore struct {
	mu         sync.Mutex
	caches     map[string]*session.Cache
	maxEntries int
}

func newSessionStore(maxEntries int) *sessionStore {
	return &sessionStore{
		caches:     make(map[string]*session.Cache),
		maxEntries: maxEntries,
	}
}

func (st *sessionStore) get(id string) *session.Cache {
	st.mu.Lock()
	defer st.mu.Unlock()
	c, ok := st.caches[id]
	if !ok {
		c = session.NewCache(st.maxEntries)
		st.caches[id] = c
	}
	return c
}

func (st *sessionStore) drop(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.caches, id)
}
