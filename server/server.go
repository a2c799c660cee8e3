package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/norn/vm"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("norn.server")

// maxRequestBytes caps a single request body.
const maxRequestBytes = 64 << 20

// NornServer is the evaluation service. It serves CBOR-over-HTTP on a
// single port; see wire.go for the message shapes.
type NornServer struct {
	sessions  *SessionStore
	newInterp func() *vm.Interp
	mux       *http.ServeMux
	httpSrv   *http.Server
}

// New creates a server whose evaluators come from the given factory. A
// nil factory uses vm.NewInterp.
func New(newInterp func() *vm.Interp) *NornServer {
	if newInterp == nil {
		newInterp = func() *vm.Interp { return vm.NewInterp() }
	}

	s := &NornServer{
		sessions:  NewSessionStore(newInterp),
		newInterp: newInterp,
		mux:       http.NewServeMux(),
	}

	s.mux.HandleFunc("/norn.v1.EvalService/Eval", s.handleEval)
	s.mux.HandleFunc("/norn.v1.EvalService/Encode", s.handleEncode)
	s.mux.HandleFunc("/norn.v1.EvalService/Decode", s.handleDecode)
	s.mux.HandleFunc("/norn.v1.SessionService/Create", s.handleCreateSession)
	s.mux.HandleFunc("/norn.v1.SessionService/Destroy", s.handleDestroySession)

	return s
}

// Handler returns the server's HTTP handler, for embedding or tests.
func (s *NornServer) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts serving on addr. Blocks until Stop or failure.
func (s *NornServer) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.httpSrv = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Infof("serving on %s", ln.Addr())

	if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the listener down.
func (s *NornServer) Stop() {
	if s.httpSrv != nil {
		s.httpSrv.Close()
	}
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

// readRequest decodes the CBOR body into m.
func readRequest(w http.ResponseWriter, r *http.Request, m any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return false
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	if err := UnmarshalMessage(body, m); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// writeResponse encodes m as the CBOR response body.
func writeResponse(w http.ResponseWriter, m any) {
	body, err := MarshalMessage(m)
	if err != nil {
		log.Errorf("marshaling response: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.Write(body)
}

func (s *NornServer) handleEval(w http.ResponseWriter, r *http.Request) {
	var req EvalRequest
	if !readRequest(w, r, &req) {
		return
	}

	expr, err := exprFromRequest(&req)
	if err != nil {
		writeResponse(w, &EvalResponse{Error: err.Error()})
		return
	}

	var result *vm.Noun
	if req.Session != "" {
		session, ok := s.sessions.Get(req.Session)
		if !ok {
			writeResponse(w, &EvalResponse{Error: "unknown session"})
			return
		}
		result, err = session.Eval(expr)
	} else {
		result, err = s.newInterp().Eval(expr)
	}
	if err != nil {
		log.Debugf("eval failed: %v", err)
		writeResponse(w, &EvalResponse{Error: err.Error()})
		return
	}

	writeResponse(w, &EvalResponse{
		Result: vm.Encode(result),
		Text:   result.String(),
	})
}

// exprFromRequest accepts the expression in either wire or text form.
func exprFromRequest(req *EvalRequest) (*vm.Noun, error) {
	switch {
	case len(req.Expression) > 0 && req.Text != "":
		return nil, errors.New("give either an encoded expression or text, not both")
	case len(req.Expression) > 0:
		return vm.Decode(req.Expression)
	case req.Text != "":
		return vm.Parse(req.Text)
	default:
		return nil, errors.New("empty request")
	}
}

func (s *NornServer) handleEncode(w http.ResponseWriter, r *http.Request) {
	var req EncodeRequest
	if !readRequest(w, r, &req) {
		return
	}

	n, err := vm.Parse(req.Text)
	if err != nil {
		writeResponse(w, &EncodeResponse{Error: err.Error()})
		return
	}
	writeResponse(w, &EncodeResponse{Data: vm.Encode(n)})
}

func (s *NornServer) handleDecode(w http.ResponseWriter, r *http.Request) {
	var req DecodeRequest
	if !readRequest(w, r, &req) {
		return
	}

	n, err := vm.Decode(req.Data)
	if err != nil {
		writeResponse(w, &DecodeResponse{Error: err.Error()})
		return
	}
	writeResponse(w, &DecodeResponse{Text: n.String()})
}

func (s *NornServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !readRequest(w, r, &req) {
		return
	}

	session := s.sessions.Create(req.Name)
	log.Infof("session %s created", session.ID)
	writeResponse(w, &CreateSessionResponse{ID: session.ID, Name: session.Name})
}

func (s *NornServer) handleDestroySession(w http.ResponseWriter, r *http.Request) {
	var req DestroySessionRequest
	if !readRequest(w, r, &req) {
		return
	}

	existed := s.sessions.Destroy(req.ID)
	if existed {
		log.Infof("session %s destroyed", req.ID)
	}
	writeResponse(w, &DestroySessionResponse{Existed: existed})
}
