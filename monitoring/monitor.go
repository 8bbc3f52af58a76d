// Package monitoring serves a running simulation over HTTP, so that it can be
// inspected, paused and poked while it runs.
package monitoring

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	// Registers the profiling handlers on http.DefaultServeMux.
	_ "net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/pkg/errors"

	"github.com/sarchlab/hyperbus/monitoring/web"
	"github.com/sarchlab/hyperbus/sim/id"
	"github.com/sarchlab/hyperbus/sim/modeling"
	"github.com/sarchlab/hyperbus/sim/timing"
)

// RegisterFile is a component that exposes control registers.
type RegisterFile interface {
	ReadRegister(offset uint64) (uint32, error)
	WriteRegister(offset uint64, value uint32) error
}

// Monitor serves the state of a simulation.
type Monitor struct {
	engine      timing.Engine
	components  []modeling.Component
	buffers     []modeling.Buffer
	portNumber  int
	openBrowser bool

	progressMu sync.Mutex
	progress   []*Progress
}

// NewMonitor creates a Monitor that listens on a random port.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port the server listens on. Ports below 1024 are
// replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1024 {
		log.Printf("monitor: port %d is reserved, using a random port",
			portNumber)

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes the monitor open the web page once the server is up.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterEngine sets the engine the server pauses, resumes and reads the
// time of.
func (m *Monitor) RegisterEngine(e timing.Engine) {
	m.engine = e
}

// RegisterComponent makes a component visible to the server, together with
// the buffers of the component and of its ports.
func (m *Monitor) RegisterComponent(c modeling.Component) {
	m.components = append(m.components, c)

	m.addBuffers(c)
	for _, p := range c.Ports() {
		m.addBuffers(p)
	}
}

func (m *Monitor) addBuffers(x any) {
	if owner, ok := x.(modeling.BufferOwner); ok {
		m.buffers = append(m.buffers, owner.Buffers()...)
	}
}

func (m *Monitor) component(name string) (modeling.Component, error) {
	i := slices.IndexFunc(m.components, func(c modeling.Component) bool {
		return c.Name() == name
	})
	if i < 0 {
		return nil, withStatus(http.StatusNotFound,
			errors.Errorf("component %s not found", name))
	}

	return m.components[i], nil
}

// NewProgress creates a progress shown on the web page until it is removed.
func (m *Monitor) NewProgress(name string, total uint64) *Progress {
	p := &Progress{
		id:    id.Generate(),
		name:  name,
		start: time.Now(),
		total: total,
	}

	m.progressMu.Lock()
	defer m.progressMu.Unlock()

	m.progress = append(m.progress, p)

	return p
}

// RemoveProgress stops showing a progress.
func (m *Monitor) RemoveProgress(p *Progress) {
	m.progressMu.Lock()
	defer m.progressMu.Unlock()

	m.progress = slices.DeleteFunc(m.progress, func(q *Progress) bool {
		return q == p
	})
}

func (m *Monitor) progressReports() []ProgressReport {
	m.progressMu.Lock()
	defer m.progressMu.Unlock()

	reports := make([]ProgressReport, 0, len(m.progress))
	for _, p := range m.progress {
		reports = append(reports, p.Report())
	}

	return reports
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.Handle("/pause", apiHandler(m.pause))
	api.Handle("/continue", apiHandler(m.resume))
	api.Handle("/now", apiHandler(m.now))
	api.Handle("/run", apiHandler(m.run))
	api.Handle("/tick/{name}", apiHandler(m.tick))
	api.Handle("/list_components", apiHandler(m.listComponents))
	api.Handle("/component/{name}", apiHandler(m.componentDetails))
	api.Handle("/field/{json}", apiHandler(m.fieldValue))
	api.Handle("/hangdetector/buffers", apiHandler(m.bufferLevels))
	api.Handle("/progress", apiHandler(m.listProgress))
	api.Handle("/resource", apiHandler(m.resources))
	api.Handle("/profile", apiHandler(m.profile))
	api.Handle("/register/{name}/{offset}", apiHandler(m.readRegister)).
		Methods(http.MethodGet)
	api.Handle("/register/{name}/{offset}", apiHandler(m.writeRegister)).
		Methods(http.MethodPut)

	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	r.PathPrefix("/").Handler(http.FileServer(web.Assets()))

	return r
}

// StartServer starts serving in the background and returns the URL of the
// web page.
func (m *Monitor) StartServer() string {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", m.portNumber))
	if err != nil {
		log.Panicf("monitor: %v", err)
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	log.Printf("monitor: serving %s", url)

	router := m.router()

	go func() {
		if err := http.Serve(listener, router); err != nil {
			log.Panicf("monitor: %v", err)
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			log.Printf("monitor: cannot open a browser: %v", err)
		}
	}

	return url
}
