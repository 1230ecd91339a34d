// Package http exposes the pipeline over JSON REST and a websocket session.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"quiz-pipeline-service/internal/app"
	"quiz-pipeline-service/internal/domain"
	"quiz-pipeline-service/internal/logger"
)

const maxBodyBytes = 1 << 20

// Pipeline is the subset of the orchestrator the transport needs.
type Pipeline interface {
	GenerateQuiz(ctx context.Context, userID, topic string) app.Result[app.GeneratedQuiz]
	EvaluateQuiz(ctx context.Context, req app.EvaluateRequest) app.Result[app.EvaluationSummary]
	EvaluateQuizByRequest(ctx context.Context, userID, requestID string, answers []int, timeTaken int) app.Result[app.EvaluationSummary]
	GetUserStats(ctx context.Context, userID string) app.Result[app.UserStats]
	GetTraceLogs(ctx context.Context, requestID string) app.Result[app.TraceLogs]
	ListTopics(ctx context.Context) app.Result[[]string]
	RegisterUser(ctx context.Context, req app.RegisterRequest) app.Result[domain.UserProfile]
	GetLeaderboard(ctx context.Context, limit int) app.Result[domain.Leaderboard]
	Leaderboard() *app.LeaderboardHub
}

type API struct {
	pipeline Pipeline
	log      *logger.Logger
}

func NewAPI(pipeline Pipeline, log *logger.Logger) *API {
	if log == nil {
		log = logger.Nop()
	}
	return &API{pipeline: pipeline, log: log.With("component", "http")}
}

// Register mounts the REST routes on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/users", a.registerUser)
	mux.HandleFunc("GET /api/users/{id}/stats", a.userStats)
	mux.HandleFunc("POST /api/quiz/generate", a.generateQuiz)
	mux.HandleFunc("POST /api/quiz/submit", a.submitQuiz)
	mux.HandleFunc("GET /api/trace/{requestId}", a.traceLogs)
	mux.HandleFunc("GET /api/topics", a.topics)
	mux.HandleFunc("GET /api/leaderboard", a.leaderboard)
}

type generateRequest struct {
	UserID string `json:"user_id"`
	Topic  string `json:"topic"`
}

// submitRequest grades either a cached quiz (RequestID set) or the
// questions supplied inline.
type submitRequest struct {
	UserID           string            `json:"user_id"`
	RequestID        string            `json:"request_id"`
	Answers          []int             `json:"answers"`
	Questions        []domain.Question `json:"questions"`
	Topic            string            `json:"topic"`
	Difficulty       domain.Tier       `json:"difficulty"`
	TimeTakenSeconds int               `json:"time_taken_seconds"`
}

func (a *API) registerUser(w http.ResponseWriter, r *http.Request) {
	var req app.RegisterRequest
	if !a.decode(w, r, &req) {
		return
	}
	res := a.pipeline.RegisterUser(r.Context(), req)
	status := http.StatusCreated
	if !res.OK() {
		status = statusFor(res.ErrorKind)
	}
	writeJSON(w, status, res)
}

func (a *API) userStats(w http.ResponseWriter, r *http.Request) {
	writeResult(w, a.pipeline.GetUserStats(r.Context(), r.PathValue("id")))
}

func (a *API) generateQuiz(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !a.decode(w, r, &req) {
		return
	}
	writeResult(w, a.pipeline.GenerateQuiz(r.Context(), req.UserID, req.Topic))
}

func (a *API) submitQuiz(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !a.decode(w, r, &req) {
		return
	}
	writeResult(w, a.submit(r.Context(), req))
}

func (a *API) submit(ctx context.Context, req submitRequest) app.Result[app.EvaluationSummary] {
	if req.RequestID != "" {
		return a.pipeline.EvaluateQuizByRequest(ctx, req.UserID, req.RequestID, req.Answers, req.TimeTakenSeconds)
	}
	return a.pipeline.EvaluateQuiz(ctx, app.EvaluateRequest{
		UserID:           req.UserID,
		Questions:        req.Questions,
		Answers:          req.Answers,
		Topic:            req.Topic,
		Difficulty:       req.Difficulty,
		TimeTakenSeconds: req.TimeTakenSeconds,
	})
}

func (a *API) traceLogs(w http.ResponseWriter, r *http.Request) {
	writeResult(w, a.pipeline.GetTraceLogs(r.Context(), r.PathValue("requestId")))
}

func (a *API) topics(w http.ResponseWriter, r *http.Request) {
	writeResult(w, a.pipeline.ListTopics(r.Context()))
}

func (a *API) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeResult(w, a.pipeline.GetLeaderboard(r.Context(), limit))
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		a.log.Debug("rejecting request body", "path", r.URL.Path, "error", err)
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, app.Result[any]{
			Status:    app.StatusError,
			Error:     "invalid request body",
			ErrorKind: domain.KindValidation,
		})
		return false
	}
	return true
}

func writeResult[T any](w http.ResponseWriter, res app.Result[T]) {
	status := http.StatusOK
	if !res.OK() {
		status = statusFor(res.ErrorKind)
	}
	writeJSON(w, status, res)
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
