// Package httpapi exposes the secretroom engine over HTTP: the anonymous
// solve surface, the authenticated room CRUD surface, the public listing,
// and upload grants. Errors are rendered in a single envelope shape; client
// addresses are resolved from forwarding headers before the engine sees the
// request.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	secretroom "github.com/internos-labs/secretroom"
	"github.com/internos-labs/secretroom/identity"
)

const solverIDHeader = "X-Solver-Id"

// Server wires engine operations to routes.
type Server struct {
	engine   *secretroom.Engine
	identity *identity.Verifier
}

// NewServer describes the newserver operation and its observable behavior.
func NewServer(engine *secretroom.Engine, verifier *identity.Verifier) *Server {
	return &Server{
		engine:   engine,
		identity: verifier,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /solve/nonce", s.handleNonce)
	mux.HandleFunc("GET /s/{id}/meta", s.handleSolveMeta)
	mux.HandleFunc("POST /solve", s.handleSolve)

	mux.HandleFunc("GET /rooms/public", s.handlePublicRooms)
	mux.HandleFunc("POST /rooms", s.handleCreateRoom)
	mux.HandleFunc("GET /rooms/{id}", s.handleRoomMeta)
	mux.HandleFunc("PATCH /rooms/{id}", s.handleUpdateRoom)
	mux.HandleFunc("DELETE /rooms/{id}", s.handleDeleteRoom)

	mux.HandleFunc("POST /uploads", s.handleUpload)

	return s.withRequestContext(mux)
}

// withRequestContext attaches the resolved client address and the optional
// solver correlation id before any handler runs.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := secretroom.WithClientIP(r.Context(), clientIP(r))
		if solverID := strings.TrimSpace(r.Header.Get(solverIDHeader)); solverID != "" {
			ctx = secretroom.WithSolverID(ctx, solverID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleNonce(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(r.URL.Query().Get("roomId"), 10, 64)
	if err != nil {
		writeError(w, validationError("roomId must be an integer"))
		return
	}

	grant, err := s.engine.NonceForRoom(r.Context(), roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

func (s *Server) handleSolveMeta(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	meta, err := s.engine.RoomSolveMeta(r.Context(), roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

type solveRequest struct {
	RoomID int64  `json:"roomId"`
	Nonce  string `json:"nonce"`
	Answer string `json:"answer"`
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Nonce == "" || req.Answer == "" {
		writeError(w, validationError("nonce and answer are required"))
		return
	}

	result, err := s.engine.Solve(r.Context(), req.RoomID, req.Nonce, req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePublicRooms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, validationError("limit must be an integer"))
			return
		}
		limit = parsed
	}

	page, err := s.engine.PublicRooms(r.Context(), q.Get("sort"), q.Get("cursor"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type contentSpecRequest struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	FileRef string `json:"fileRef"`
	Alt     string `json:"alt"`
}

type createRoomRequest struct {
	Title      string             `json:"title"`
	Hint       string             `json:"hint"`
	Answer     string             `json:"answer"`
	Content    contentSpecRequest `json:"content"`
	Visibility string             `json:"visibility"`
	Policy     string             `json:"policy"`
	ViewLimit  int                `json:"viewLimit"`
	ExpiresAt  *time.Time         `json:"expiresAt"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	caller, err := s.caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	in := secretroom.CreateRoomInput{
		Title:  req.Title,
		Hint:   req.Hint,
		Answer: req.Answer,
		Content: secretroom.ContentSpec{
			Kind:    secretroom.ContentKind(req.Content.Type),
			Text:    req.Content.Text,
			FileRef: req.Content.FileRef,
			Alt:     req.Content.Alt,
		},
		Visibility: secretroom.Visibility(req.Visibility),
		Policy:     secretroom.Policy(req.Policy),
		ViewLimit:  req.ViewLimit,
	}
	if req.ExpiresAt != nil {
		in.ExpiresAt = *req.ExpiresAt
	}

	result, err := s.engine.CreateRoom(r.Context(), caller, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleRoomMeta(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// Identity is optional here: anonymous callers see public rooms only.
	caller, _ := s.optionalCaller(r)

	meta, err := s.engine.RoomMeta(r.Context(), caller, roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

type updateRoomRequest struct {
	Title      *string    `json:"title"`
	Hint       *string    `json:"hint"`
	Visibility *string    `json:"visibility"`
	Policy     *string    `json:"policy"`
	ViewLimit  *int       `json:"viewLimit"`
	ExpiresAt  *time.Time `json:"expiresAt"`
}

func (s *Server) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	caller, err := s.caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	roomID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	in := secretroom.UpdateRoomInput{
		Title:     req.Title,
		Hint:      req.Hint,
		ViewLimit: req.ViewLimit,
		ExpiresAt: req.ExpiresAt,
	}
	if req.Visibility != nil {
		v := secretroom.Visibility(*req.Visibility)
		in.Visibility = &v
	}
	if req.Policy != nil {
		p := secretroom.Policy(*req.Policy)
		in.Policy = &p
	}

	meta, err := s.engine.UpdateRoom(r.Context(), caller, roomID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	caller, err := s.caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	roomID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.engine.DeleteRoom(r.Context(), caller, roomID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type uploadRequest struct {
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	caller, err := s.caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req uploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	grant, err := s.engine.IssueUpload(r.Context(), caller, req.FileName, req.MimeType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

// caller resolves the authenticated caller or fails with ErrForbidden.
func (s *Server) caller(r *http.Request) (secretroom.CallerIdentity, error) {
	caller, err := s.optionalCaller(r)
	if err != nil {
		return secretroom.CallerIdentity{}, err
	}
	if caller.UserID == "" {
		return secretroom.CallerIdentity{}, secretroom.ErrForbidden
	}
	return caller, nil
}

// optionalCaller resolves the bearer identity when one is presented. No
// Authorization header yields an anonymous caller; a present but invalid
// token is an error.
func (s *Server) optionalCaller(r *http.Request) (secretroom.CallerIdentity, error) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return secretroom.CallerIdentity{}, nil
	}
	if s.identity == nil {
		return secretroom.CallerIdentity{}, secretroom.ErrForbidden
	}

	caller, err := s.identity.Verify(token)
	if err != nil {
		return secretroom.CallerIdentity{}, secretroom.ErrForbidden
	}
	return caller, nil
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, validationError("room id must be an integer")
	}
	return id, nil
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return validationError("malformed request body")
	}
	return nil
}

func validationError(msg string) error {
	return &requestError{msg: msg, wrapped: secretroom.ErrValidation}
}

type requestError struct {
	msg     string
	wrapped error
}

func (e *requestError) Error() string { return e.msg }

func (e *requestError) Unwrap() error { return e.wrapped }
