// Package statusweb serves a read-only HTML view over the ledger. It is
// a pure projection: every row shown was committed by the engine, and
// nothing here writes back.
package statusweb

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/dnsmesh/internal/ledger"
)

const recentEventLimit = 50

type Server struct {
	ledger *ledger.Ledger
	addr   string
}

func NewServer(l *ledger.Ledger, addr string) (*Server, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("statusweb: listen address required")
	}
	return &Server{ledger: l, addr: strings.TrimSpace(addr)}, nil
}

type pageData struct {
	Controllers []ledger.ControllerRow
	Sites       []ledger.SiteRow
	Records     []ledger.RecordRow
	Events      []ledger.EventRow
}

// Handler returns the dashboard handler, separate from Run so tests can
// drive it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()

	var data pageData
	var err error
	if data.Controllers, err = s.ledger.Controllers(ctx); err == nil {
		if data.Sites, err = s.ledger.Sites(ctx); err == nil {
			if data.Records, err = s.ledger.RecordRows(ctx); err == nil {
				data.Events, err = s.ledger.RecentEvents(ctx, recentEventLimit)
			}
		}
	}
	if err != nil {
		log.Error().Msgf("statusweb query failed: %v", err)
		http.Error(w, "status unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Execute(w, data); err != nil {
		log.Error().Msgf("statusweb render failed: %v", err)
	}
}

// Run serves the dashboard until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Msgf("statusweb listening addr=%q", s.addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

var page = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head>
<title>dnsmesh status</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; color: #333; max-width: 1100px; margin: 0 auto; padding: 20px; background: #f4f7f6; }
h1 { color: #2c3e50; border-bottom: 2px solid #3498db; padding-bottom: 8px; }
h2 { color: #2980b9; margin-top: 28px; }
table { width: 100%; border-collapse: collapse; background: white; box-shadow: 0 2px 4px rgba(0,0,0,.08); }
th, td { padding: 10px 14px; text-align: left; border-bottom: 1px solid #eee; }
th { background: #3498db; color: white; }
.status-created { color: #27ae60; font-weight: bold; }
.status-failed { color: #c0392b; font-weight: bold; }
.empty { padding: 16px; text-align: center; color: #7f8c8d; font-style: italic; }
</style>
</head>
<body>
<h1>dnsmesh</h1>

<h2>Controllers</h2>
<table>
<tr><th>Host</th><th>Last Contact</th></tr>
{{range .Controllers}}<tr><td>{{.Host}}</td><td>{{.LastContact}}</td></tr>
{{else}}<tr><td colspan="2" class="empty">No controllers registered</td></tr>
{{end}}</table>

<h2>Sites</h2>
<table>
<tr><th>UUID</th><th>Controller</th><th>Name</th><th>Last Synced</th></tr>
{{range .Sites}}<tr><td>{{.UUID}}</td><td>{{.ControllerHost}}</td><td>{{.Name}}</td><td>{{.LastSynced}}</td></tr>
{{else}}<tr><td colspan="4" class="empty">No sites registered</td></tr>
{{end}}</table>

<h2>DNS Records (consolidated)</h2>
<table>
<tr><th>Kind</th><th>Domain</th><th>Target</th><th>Origins</th></tr>
{{range .Records}}<tr><td>{{.Kind}}</td><td>{{.Domain}}</td><td>{{.Target}}</td><td>{{range $i, $o := .Origins}}{{if $i}}, {{end}}{{$o}}{{end}}</td></tr>
{{else}}<tr><td colspan="4" class="empty">No records found</td></tr>
{{end}}</table>

<h2>Sync Events (last {{len .Events}})</h2>
<table>
<tr><th>Time</th><th>Domain</th><th>Site</th><th>Status</th></tr>
{{range .Events}}<tr><td>{{.Timestamp}}</td><td>{{.Domain}}</td><td>{{.SiteName}}</td><td class="status-{{if eq .Status "CREATED"}}created{{else}}failed{{end}}">{{.Status}}</td></tr>
{{else}}<tr><td colspan="4" class="empty">No sync events logged</td></tr>
{{end}}</table>
</body>
</html>
`))
