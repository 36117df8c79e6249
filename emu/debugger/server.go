package debugger

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"debug80/emu/log"
	"debug80/hw/input"
	"debug80/hw/platform"
	"debug80/hw/uart"
)

// Controller is the emulator as seen by front ends. Its methods are called
// from connection goroutines.
type Controller interface {
	Continue()
	Pause()
	Step()
	StepOver()
	StepOut()
	Key(k input.Key)
	Serial(data []byte)
	SetSpeed(s platform.Speed)
	Reset()
	SetBreakpoints(addrs []uint16)
	ViewMemory(sel Selector, addr uint16, size int) (MemView, error)
	State() State
}

// sendQueueLen is the number of messages buffered per client. Messages to a
// client whose queue is full are dropped.
const sendQueueLen = 64

// Server serves the debugger websocket endpoint and broadcasts emulator
// events to every connected front end.
type Server struct {
	ctrl Controller

	mu      sync.Mutex
	clients map[*client]struct{}

	srv *http.Server
	ln  net.Listener
}

type client struct {
	ws   *websocket.Conn
	send chan []byte
}

func NewServer(ctrl Controller) *Server {
	s := &Server{
		ctrl:    ctrl,
		clients: make(map[*client]struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket)
	s.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Listen opens the listening socket.
func (s *Server) Listen(hostport string) error {
	ln, err := net.Listen("tcp", hostport)
	if err != nil {
		return fmt.Errorf("debugger server: %w", err)
	}
	s.ln = ln
	log.ModDbg.InfoZ("debugger server listening").String("addr", ln.Addr().String()).End()
	return nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Serve serves connections until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		return errors.New("debugger server: not listening")
	}
	errc := make(chan error, 1)
	go func() { errc <- s.srv.Serve(s.ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.closeClients()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ModDbg.ErrorZ("failed to perform websocket handshake").Error("err", err).End()
		return
	}

	log.ModDbg.DebugZ("websocket handshake success").String("remote", r.RemoteAddr).End()

	c := &client{ws: ws, send: make(chan []byte, sendQueueLen)}
	c.send <- StateMessage(s.ctrl.State())

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writeLoop()
	}()

	if err := s.readLoop(c); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.ModDbg.WarnZ("connection to debugger ended").Error("err", err).End()
	}

	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
	<-done
	ws.Close()
}

func (c *client) writeLoop() {
	for msg := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.ModDbg.ErrorZ("error writing to debugger").Error("err", err).End()
			c.ws.Close()
			for range c.send {
			}
			return
		}
	}
	c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.ws.Close()
}

func (s *Server) readLoop(c *client) error {
	for {
		_, buf, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}

		log.ModDbg.DebugZ("received message from debugger").
			String("msg", string(buf)).
			End()

		req, err := DecodeRequest(buf)
		if err != nil {
			log.ModDbg.WarnZ("bad debugger request").Error("err", err).End()
			s.sendTo(c, ErrorMessage(err))
			continue
		}
		if resp := s.dispatch(req); resp != nil {
			s.sendTo(c, resp)
		}
	}
}

// dispatch forwards req to the controller and returns the direct response,
// if any.
func (s *Server) dispatch(req Request) []byte {
	switch req.Event {
	case evSetCPUState:
		switch req.CPUState {
		case "run":
			s.ctrl.Continue()
		case "pause":
			s.ctrl.Pause()
		case "step":
			s.ctrl.Step()
		case "step-over":
			s.ctrl.StepOver()
		case "step-out":
			s.ctrl.StepOut()
		}
	case evKey:
		s.ctrl.Key(req.Key)
	case evSerial:
		s.ctrl.Serial(req.Data)
	case evSpeed:
		s.ctrl.SetSpeed(req.Speed)
	case evReset:
		s.ctrl.Reset()
	case evBreakpoints:
		s.ctrl.SetBreakpoints(req.Breakpoints)
		return StateMessage(s.ctrl.State())
	case evMemory:
		v, err := s.ctrl.ViewMemory(req.Memory.Selector, req.Memory.Addr, req.Memory.Size)
		if err != nil {
			return ErrorMessage(err)
		}
		return MemoryMessage(v)
	}
	return nil
}

func (s *Server) sendTo(c *client, msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
		log.ModDbg.WarnZ("debugger client too slow, message dropped").End()
	}
}

// Broadcast sends msg to every connected front end.
func (s *Server) Broadcast(msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			log.ModDbg.WarnZ("debugger client too slow, message dropped").End()
		}
	}
}

func (s *Server) PublishState(st State)                  { s.Broadcast(StateMessage(st)) }
func (s *Server) PublishSnapshot(snap platform.Snapshot) { s.Broadcast(SnapshotMessage(snap)) }
func (s *Server) PublishSerial(f uart.Frame)             { s.Broadcast(SerialMessage(f)) }

// Clients returns the number of connected front ends.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}
