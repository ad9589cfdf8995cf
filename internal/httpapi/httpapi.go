// Package httpapi is the minimal HTTP routing layer that sits in front of
// the subscription registry. Spec section 2 scopes the HTML rendering
// layer, the live-view push multiplexer, and static asset serving out as
// external collaborators specified only at their interface; this package
// implements just enough of that interface (routing, redirects, the
// websocket upgrade) to exercise the registry and session packages end to
// end.
package httpapi

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/davidpdrsn/console-web/internal/registry"
	"github.com/davidpdrsn/console-web/internal/session"
	"github.com/davidpdrsn/console-web/internal/upstream"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
)

// Server wires the subscription registry to httprouter routes.
type Server struct {
	registry *registry.Registry
	upgrader websocket.Upgrader
	tmpl     *template.Template
}

// New builds a Server backed by reg. Templates are parsed from inline
// strings: the HTML rendering layer itself is out of scope (spec section
// 2), so these are a thin placeholder sufficient to drive the routes.
func New(reg *registry.Registry) *Server {
	tmpl := template.Must(template.New("index").Parse(indexTemplate))
	template.Must(tmpl.New("console").Parse(consoleTemplate))
	template.Must(tmpl.New("connection-failed").Parse(connectionFailedTemplate))

	return &Server{
		registry: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		tmpl: tmpl,
	}
}

// Router builds the httprouter.Router exposing the documented routes.
func (s *Server) Router() *httprouter.Router {
	r := httprouter.New()
	r.GET("/", s.handleIndex)
	r.GET("/open-console", s.handleOpenConsole)
	r.GET("/console/:ip/:port/tasks", s.handleConsole("tasks"))
	r.GET("/console/:ip/:port/resources", s.handleConsole("resources"))
	r.GET("/console/:ip/:port/live", s.handleLive)
	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	flash := r.URL.Query().Get("flash")
	_ = s.tmpl.ExecuteTemplate(w, "index", map[string]string{"Flash": flash})
}

// handleOpenConsole implements the documented open-console route: on
// success it 303s to the console's tasks view, on failure it redirects
// back to the index carrying a flash message.
func (s *Server) handleOpenConsole(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ip := r.URL.Query().Get("ip")
	port := r.URL.Query().Get("port")

	target, err := upstream.ParseTarget(ip, port)
	if err != nil {
		s.redirectWithFlash(w, r, ip, port, err)
		return
	}

	addr := registryKey(ip, port)
	if _, err := s.registry.Subscribe(r.Context(), addr, target); err != nil {
		s.redirectWithFlash(w, r, ip, port, err)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/console/%s/%s/tasks", url.PathEscape(ip), url.PathEscape(port)), http.StatusSeeOther)
}

func (s *Server) redirectWithFlash(w http.ResponseWriter, r *http.Request, ip, port string, err error) {
	logrus.WithError(err).WithFields(logrus.Fields{"ip": ip, "port": port}).Warn("open-console failed")
	q := url.Values{"ip": {ip}, "port": {port}, "flash": {err.Error()}}
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusFound)
}

// handleConsole subscribes (deduplicating via the registry) and renders
// the requested view, or a connection-failed page if the subscribe fails.
func (s *Server) handleConsole(view string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ip := ps.ByName("ip")
		port := ps.ByName("port")

		target, err := upstream.ParseTarget(ip, port)
		if err != nil {
			s.renderConnectionFailed(w, ip, port, err)
			return
		}

		addr := registryKey(ip, port)
		if _, err := s.registry.Subscribe(r.Context(), addr, target); err != nil {
			s.renderConnectionFailed(w, ip, port, err)
			return
		}

		_ = s.tmpl.ExecuteTemplate(w, "console", map[string]string{
			"IP": ip, "Port": port, "View": view,
		})
	}
}

func (s *Server) renderConnectionFailed(w http.ResponseWriter, ip, port string, err error) {
	w.WriteHeader(http.StatusBadGateway)
	_ = s.tmpl.ExecuteTemplate(w, "connection-failed", map[string]string{
		"IP": ip, "Port": port, "Error": err.Error(),
	})
}

// handleLive upgrades the request to a websocket and pushes session
// events to the browser until the connection or the session ends.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ip := ps.ByName("ip")
	port := ps.ByName("port")

	target, err := upstream.ParseTarget(ip, port)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	addr := registryKey(ip, port)
	handle, err := s.registry.Subscribe(r.Context(), addr, target)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	sess := session.Construct(addr, handle)
	defer sess.Close()

	conn, err := s.upgrader.Upgrade(w, r, http.Header{"X-Console-Session": {sess.ID}})
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	for ev := range sess.Events() {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		switch ev.Kind {
		case session.EventUpdate:
			if err := conn.WriteJSON(map[string]any{"kind": "update"}); err != nil {
				return
			}
		case session.EventDisconnected:
			_ = conn.WriteJSON(map[string]any{"kind": "disconnected"})
		case session.EventError:
			_ = conn.WriteJSON(map[string]any{"kind": "error", "message": ev.Err.Error()})
			return
		}
	}
}

func registryKey(ip, port string) string { return ip + ":" + port }

const indexTemplate = `<!doctype html><html><body>
{{if .Flash}}<p class="flash">{{.Flash}}</p>{{end}}
<form action="/open-console" method="get">
<input name="ip" placeholder="ip"><input name="port" placeholder="port">
<button type="submit">Connect</button>
</form></body></html>`

const consoleTemplate = `<!doctype html><html><body>
<h1>{{.IP}}:{{.Port}} - {{.View}}</h1>
<div id="rows"></div>
</body></html>`

const connectionFailedTemplate = `<!doctype html><html><body>
<p>Could not connect to {{.IP}}:{{.Port}}: {{.Error}}</p>
</body></html>`
