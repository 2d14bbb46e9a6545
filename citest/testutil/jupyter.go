// Package testutil provides a fake notebook server for integration tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/nbkit/nbkit/pkg/types"
)

// JupyterServer is an in-process notebook server with an echo kernel. Each
// execute_request is answered with the full iopub sequence a real kernel
// produces: busy, execute_input, stream, execute_result, idle. The stream
// text is the submitted source followed by a newline. Sources containing
// "input(" trigger a stdin round trip first.
type JupyterServer struct {
	URL string

	server   *httptest.Server
	upgrader websocket.Upgrader
	token    string

	mu        sync.Mutex
	notebooks map[string]*types.Notebook
	kernels   map[string]types.Kernel
	sessionN  int
}

// StartJupyterServer starts a fake server. Pass an empty token to disable
// auth checking.
func StartJupyterServer(token string) *JupyterServer {
	js := &JupyterServer{
		token:     token,
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		notebooks: make(map[string]*types.Notebook),
		kernels:   make(map[string]types.Kernel),
	}

	r := chi.NewRouter()
	r.Use(js.authenticate)
	r.Post("/api/sessions", js.createSession)
	r.Get("/api/kernels", js.listKernels)
	r.Delete("/api/kernels/{kernelID}", js.deleteKernel)
	r.Get("/api/kernels/{kernelID}/channels", js.channels)
	r.Post("/api/contents", js.openContents)
	r.Put("/api/contents", js.saveContents)

	js.server = httptest.NewServer(r)
	js.URL = js.server.URL
	return js
}

// Stop shuts the server down.
func (js *JupyterServer) Stop() {
	js.server.Close()
}

// SeedNotebook installs a notebook document at path.
func (js *JupyterServer) SeedNotebook(path string, nb *types.Notebook) {
	js.mu.Lock()
	defer js.mu.Unlock()
	js.notebooks[path] = nb
}

// Notebook returns the stored notebook at path, or nil.
func (js *JupyterServer) Notebook(path string) *types.Notebook {
	js.mu.Lock()
	defer js.mu.Unlock()
	return js.notebooks[path]
}

// Kernels returns the ids of kernels the server considers running.
func (js *JupyterServer) Kernels() []string {
	js.mu.Lock()
	defer js.mu.Unlock()
	ids := make([]string, 0, len(js.kernels))
	for id := range js.kernels {
		ids = append(ids, id)
	}
	return ids
}

func (js *JupyterServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if js.token != "" && r.Header.Get("Authorization") != "token "+js.token {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (js *JupyterServer) createSession(w http.ResponseWriter, r *http.Request) {
	var req types.SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Kernel.Name == "" || req.Kernel.Name == "default" {
		http.Error(w, "no kernelspec named default", http.StatusBadRequest)
		return
	}

	js.mu.Lock()
	js.sessionN++
	kernel := types.Kernel{ID: fmt.Sprintf("kernel-%d", js.sessionN), Name: req.Kernel.Name}
	js.kernels[kernel.ID] = kernel
	session := types.Session{ID: fmt.Sprintf("session-%d", js.sessionN), Kernel: kernel}
	js.mu.Unlock()

	json.NewEncoder(w).Encode(session)
}

func (js *JupyterServer) listKernels(w http.ResponseWriter, r *http.Request) {
	js.mu.Lock()
	kernels := make([]types.Kernel, 0, len(js.kernels))
	for _, k := range js.kernels {
		kernels = append(kernels, k)
	}
	js.mu.Unlock()
	json.NewEncoder(w).Encode(kernels)
}

func (js *JupyterServer) deleteKernel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "kernelID")
	js.mu.Lock()
	_, ok := js.kernels[id]
	delete(js.kernels, id)
	js.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (js *JupyterServer) openContents(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	js.mu.Lock()
	nb := js.notebooks[req.Path]
	js.mu.Unlock()
	if nb == nil {
		http.NotFound(w, r)
		return
	}
	json.NewEncoder(w).Encode(nb)
}

func (js *JupyterServer) saveContents(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path    string          `json:"path"`
		Content *types.Notebook `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	js.mu.Lock()
	js.notebooks[req.Path] = req.Content
	js.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (js *JupyterServer) channels(w http.ResponseWriter, r *http.Request) {
	conn, err := js.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var mu sync.Mutex
	kc := &kernelConn{
		send: func(msg types.Message) error {
			mu.Lock()
			defer mu.Unlock()
			return conn.WriteJSON(msg)
		},
	}

	for {
		var msg types.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Header.MsgType {
		case types.MsgTypeExecuteRequest:
			kc.handleExecute(&msg)
		case types.MsgTypeInputReply:
			kc.handleInputReply(&msg)
		case types.MsgTypeInspectRequest:
			kc.handleInspect(&msg)
		}
	}
}

// kernelConn is the echo kernel behind one channel connection. The execution
// counter is per connection, matching a freshly started kernel.
type kernelConn struct {
	send      func(types.Message) error
	execCount int
}

// reply builds an iopub-style message parented to the triggering request.
func reply(parent *types.Message, msgType, channel string, content any) types.Message {
	data, _ := json.Marshal(content)
	return types.Message{
		Header: types.Header{
			MsgID:   fmt.Sprintf("%s-%s", parent.Header.MsgID, msgType),
			MsgType: msgType,
			Session: "kernel",
			Version: types.ProtocolVersion,
		},
		ParentHeader: parent.Header,
		Content:      data,
		Channel:      channel,
	}
}

func (kc *kernelConn) handleExecute(msg *types.Message) {
	var req types.ExecuteRequestContent
	if err := json.Unmarshal(msg.Content, &req); err != nil {
		return
	}

	kc.send(reply(msg, types.MsgTypeStatus, types.ChannelIOPub,
		types.StatusContent{ExecutionState: "busy"}))

	// Stdin round trip before any output.
	if strings.Contains(req.Code, "input(") {
		kc.send(reply(msg, types.MsgTypeInputRequest, types.ChannelStdin,
			types.InputRequestContent{Prompt: "? "}))
		return
	}

	kc.finishExecute(msg, req.Code+"\n")
}

func (kc *kernelConn) handleInputReply(msg *types.Message) {
	var rep types.InputReplyContent
	if err := json.Unmarshal(msg.Content, &rep); err != nil {
		return
	}
	// The reply carries the cell's correlation id as its own msg_id, so a
	// synthetic parent built from it routes the remaining output frames to
	// the right cell.
	parent := &types.Message{Header: types.Header{MsgID: msg.Header.MsgID}}
	kc.finishExecute(parent, rep.Value+"\n")
}

func (kc *kernelConn) finishExecute(msg *types.Message, text string) {
	kc.execCount++
	count := kc.execCount

	kc.send(reply(msg, types.MsgTypeExecuteInput, types.ChannelIOPub,
		types.ExecuteInputContent{Code: strings.TrimSuffix(text, "\n"), ExecutionCount: count}))
	kc.send(reply(msg, types.MsgTypeStream, types.ChannelIOPub,
		types.StreamContent{Name: "stdout", Text: text}))
	kc.send(reply(msg, types.MsgTypeExecuteResult, types.ChannelIOPub,
		types.ExecuteResultContent{
			ExecutionCount: count,
			Data:           map[string]any{"text/plain": strings.TrimSuffix(text, "\n")},
		}))
	kc.send(reply(msg, types.MsgTypeStatus, types.ChannelIOPub,
		types.StatusContent{ExecutionState: "idle"}))
}

func (kc *kernelConn) handleInspect(msg *types.Message) {
	var req types.InspectRequestContent
	if err := json.Unmarshal(msg.Content, &req); err != nil {
		return
	}
	kc.send(reply(msg, types.MsgTypeInspectReply, types.ChannelShell,
		types.InspectReplyContent{
			Status: "ok",
			Found:  true,
			Data:   map[string]any{"text/plain": "Docstring: help for " + req.Code},
		}))
}
