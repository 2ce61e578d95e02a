package callback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/storefront-auth/internal/client/session"
	"github.com/dmitrijs2005/storefront-auth/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxFragmentSize = 16 << 10

// landingPage hands location.hash to the fragment endpoint and clears it.
const landingPage = `<!doctype html>
<html><head><meta charset="utf-8"><title>Signing in</title></head>
<body><p id="msg">Signing in&hellip;</p>
<script>
(function () {
  var frag = window.location.hash.replace(/^#/, "");
  history.replaceState(null, "", window.location.pathname);
  var msg = document.getElementById("msg");
  if (!frag) { msg.textContent = "Nothing to do here."; return; }
  fetch("/callback/fragment", {method: "POST", body: frag})
    .then(function (r) { msg.textContent = r.ok ? "Done. You can close this window." : "Sign-in failed."; })
    .catch(function () { msg.textContent = "Sign-in failed."; });
})();
</script></body></html>
`

type Server struct {
	addr  string
	log   logging.Logger
	frags chan string

	srv *http.Server
	ln  net.Listener
}

func NewServer(addr string, log logging.Logger) *Server {
	if log == nil {
		log = logging.Nop{}
	}
	return &Server{
		addr:  addr,
		log:   log.With("component", "callback"),
		frags: make(chan string, 1),
	}
}

// Router exposes the handlers without a listener, e.g. for httptest.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("OK")) })
	r.Get("/callback", s.landing)
	r.Post("/callback/fragment", s.fragment)
	return r
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("callback listen %s: %w", s.addr, err)
	}
	s.ln = ln
	s.srv = &http.Server{Handler: s.Router()}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error(context.Background(), "callback server stopped", "error", err)
		}
	}()
	s.log.Info(context.Background(), "callback server listening", "url", s.URL())
	return nil
}

// URL is the redirect target to register with the identity provider.
func (s *Server) URL() string {
	addr := s.addr
	if s.ln != nil {
		addr = s.ln.Addr().String()
	}
	return "http://" + addr + "/callback"
}

// Wait returns the next received fragment as a Location.
func (s *Server) Wait(ctx context.Context) (session.Location, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frag := <-s.frags:
		return session.NewStaticLocation(frag), nil
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) landing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, landingPage)
}

func (s *Server) fragment(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFragmentSize))
	if err != nil {
		http.Error(w, "fragment too large", http.StatusRequestEntityTooLarge)
		return
	}
	frag := strings.TrimPrefix(strings.TrimSpace(string(body)), "#")
	if frag == "" {
		http.Error(w, "empty fragment", http.StatusBadRequest)
		return
	}

	select {
	case s.frags <- frag:
		s.log.Debug(r.Context(), "redirect fragment received")
		w.WriteHeader(http.StatusNoContent)
	default:
		// previous redirect not consumed yet
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}
}
