// Package app assembles the kernel client components for one notebook tab.
package app

import (
	"context"
	"path"

	"github.com/nbkit/nbkit/internal/api"
	"github.com/nbkit/nbkit/internal/config"
	"github.com/nbkit/nbkit/internal/dispatch"
	"github.com/nbkit/nbkit/internal/document"
	"github.com/nbkit/nbkit/internal/event"
	"github.com/nbkit/nbkit/internal/exec"
	"github.com/nbkit/nbkit/internal/session"
	"github.com/nbkit/nbkit/internal/transport"
)

// App wires config, API, session, transport, document, dispatch, and
// execution into one working client. UI shells subscribe on Bus and drive
// Keyboard and Controller.
type App struct {
	Config     *config.Config
	Bus        *event.Bus
	API        *api.Client
	Registry   *session.Registry
	Sessions   *session.Manager
	Document   *document.Store
	Dispatcher *dispatch.Dispatcher
	Transport  *transport.Manager
	Controller *exec.Controller
	Keyboard   *exec.Keyboard
}

// New builds the component graph from a configuration.
func New(cfg *config.Config) *App {
	bus := event.NewBus()
	client := api.NewClient(cfg.ServerURL, cfg.Token)
	registry := session.NewRegistry()
	sessions := session.NewManager(client, registry, bus, cfg.DefaultKernel)
	doc := document.NewStore(client, bus)
	dispatcher := dispatch.New(doc, bus)

	var opts []transport.Option
	if cfg.Reconnect {
		opts = append(opts, transport.WithReconnect())
	}
	tm := transport.NewManager(cfg.WSBase(), bus, dispatcher.Dispatch, opts...)

	ctrl := exec.NewController(sessions, tm, doc, dispatcher, cfg.Username)

	return &App{
		Config:     cfg,
		Bus:        bus,
		API:        client,
		Registry:   registry,
		Sessions:   sessions,
		Document:   doc,
		Dispatcher: dispatcher,
		Transport:  tm,
		Controller: ctrl,
		Keyboard:   exec.NewKeyboard(ctrl, doc, cfg.AppendOnNavigate),
	}
}

// OpenNotebook loads the notebook at notebookPath into the document store.
func (a *App) OpenNotebook(ctx context.Context, notebookPath string) error {
	return a.Document.Open(ctx, notebookPath)
}

// StartSession starts (or switches) the kernel session for the open notebook
// and connects the transport to it. The transport bound to a superseded
// session is closed here before the replacement connects; the session
// manager itself only replaces the session value.
func (a *App) StartSession(ctx context.Context, kernelspecName string) error {
	if a.Transport.Connected() {
		_ = a.Transport.Close()
	}

	notebookPath := a.Document.Path()
	sess, err := a.Sessions.Start(ctx, notebookPath, path.Base(notebookPath), "notebook", kernelspecName)
	if err != nil {
		return err
	}
	return a.Transport.Connect(ctx, sess)
}

// Close tears down the tab: transport first, then the event bus.
func (a *App) Close() error {
	err := a.Transport.Close()
	if busErr := a.Bus.Close(); err == nil {
		err = busErr
	}
	return err
}
