package server

import (
	"context"
	"errors"
	"io"
	golog "log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/nicolagi/pathkv/state"
	"github.com/nicolagi/pathkv/storage"
	log "github.com/sirupsen/logrus"
)

// ErrNotListening is returned by Serve if Listen was not called first.
var ErrNotListening = errors.New("not listening")

const defaultAddress = "127.0.0.1:1337"

type Option func(*options)

type options struct {
	address      string
	store        storage.Store
	readTimeout  time.Duration
	maxValueSize int64
}

func WithAddress(value string) Option {
	return func(o *options) {
		o.address = value
	}
}

// WithStore sets the backend. The server takes ownership of it; nothing else
// should use it while the server runs.
func WithStore(value storage.Store) Option {
	return func(o *options) {
		o.store = value
	}
}

// WithReadTimeout bounds the time to read a whole request, body included.
// Zero, the default, means wait forever.
func WithReadTimeout(value time.Duration) Option {
	return func(o *options) {
		o.readTimeout = value
	}
}

// WithMaxValueSize caps the size of POST bodies. Zero, the default, means no
// cap.
func WithMaxValueSize(value int64) Option {
	return func(o *options) {
		o.maxValueSize = value
	}
}

type Server struct {
	opts   options
	shared *state.Shared
	router chi.Router

	ln     net.Listener
	srv    *http.Server
	errlog io.Closer

	// Closed when Shutdown is done waiting for in-flight requests.
	done     chan struct{}
	shutdown sync.Once
}

func New(opts ...Option) *Server {
	s := &Server{}
	s.opts.address = defaultAddress
	for _, o := range opts {
		o(&s.opts)
	}
	if s.opts.store == nil {
		s.opts.store = storage.NewInMemoryStore()
	}
	s.shared = state.New(s.opts.store)
	s.router = s.routes()
	s.srv = &http.Server{
		Handler:     s.router,
		ReadTimeout: s.opts.readTimeout,
	}
	s.done = make(chan struct{})
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		logRequests,
		middleware.Recoverer,
	)
	r.Get("/*", s.handleGet)
	r.Post("/*", s.handlePost)
	r.MethodNotAllowed(handleBadRequest)
	r.NotFound(handleBadRequest)
	return r
}

// ServeHTTP makes the server usable as a plain handler, e.g., with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Listen() (addr string, err error) {
	s.ln, err = net.Listen("tcp", s.opts.address)
	if err != nil {
		return
	}
	// The writer runs a goroutine until closed, which Shutdown does.
	errlog := log.StandardLogger().WriterLevel(log.WarnLevel)
	s.errlog = errlog
	s.srv.ErrorLog = golog.New(errlog, "", 0)
	addr = s.ln.Addr().String()
	return
}

// Serve serves requests on the listener opened by Listen. After Shutdown is
// called, it returns nil once Shutdown has returned, so in-flight requests
// get their responses before the caller moves on.
func (s *Server) Serve() error {
	if s.ln == nil {
		return ErrNotListening
	}
	err := s.srv.Serve(s.ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-s.done
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) (err error) {
	s.shutdown.Do(func() {
		defer close(s.done)
		err = s.srv.Shutdown(ctx)
		if s.errlog != nil {
			if cerr := s.errlog.Close(); err == nil {
				err = cerr
			}
		}
	})
	return err
}
