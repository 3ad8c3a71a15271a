package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/volo-kola/kola/internal/app/progress"
	"github.com/volo-kola/kola/internal/domain"
)

const maxBodyBytes = 64 << 10

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", domain.ErrInvalidInput)
		}
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", domain.ErrInvalidInput, name, raw)
	}
	return n, nil
}

// ─── Users ──────────────────────────────────────────────────────────────────

type createUserRequest struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	u, err := s.svc.RegisterUser(r.Context(), req.ID, req.DisplayName)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	state, err := s.svc.LearnerState(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleDailyXP(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", progress.DefaultChartDays)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	chart, err := s.svc.XPChart(r.Context(), userID(r), days)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var total int64
	for _, b := range chart {
		total += b.XP
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":  chart,
		"total": total,
	})
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Achievements(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	unlocked := 0
	for _, a := range list {
		if a.Unlocked {
			unlocked++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"achievements": list,
		"unlocked":     unlocked,
		"total":        len(list),
	})
}

func (s *Server) handleAchievement(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.Achievement(r.Context(), userID(r), chi.URLParam(r, "code"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ─── Activity ───────────────────────────────────────────────────────────────

type exerciseRequest struct {
	IsCorrect *bool `json:"isCorrect"`
}

func (s *Server) handleCompleteExercise(w http.ResponseWriter, r *http.Request) {
	var req exerciseRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if req.IsCorrect == nil {
		s.writeServiceError(w, r, fmt.Errorf("%w: isCorrect is required", domain.ErrInvalidInput))
		return
	}
	res, err := s.svc.CompleteExercise(r.Context(), userID(r), chi.URLParam(r, "id"), *req.IsCorrect)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type lessonRequest struct {
	CorrectAnswers *int `json:"correctAnswers"`
	TotalQuestions *int `json:"totalQuestions"`
}

func (s *Server) handleCompleteLesson(w http.ResponseWriter, r *http.Request) {
	var req lessonRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if req.CorrectAnswers == nil || req.TotalQuestions == nil {
		s.writeServiceError(w, r, fmt.Errorf("%w: correctAnswers and totalQuestions are required", domain.ErrInvalidInput))
		return
	}
	res, err := s.svc.CompleteLesson(r.Context(), userID(r), chi.URLParam(r, "id"), *req.CorrectAnswers, *req.TotalQuestions)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ─── Challenges ─────────────────────────────────────────────────────────────

type challengeView struct {
	domain.Challenge
	ProgressPct float64 `json:"progressPct"`
}

func (s *Server) handleChallenges(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.DailyChallenges(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	views := make([]challengeView, 0, len(list))
	for _, c := range list {
		views = append(views, challengeView{Challenge: c, ProgressPct: c.ProgressPct()})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"challenges": views,
	})
}

func (s *Server) handleClaimChallenge(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.ClaimChallenge(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ─── Leaderboard ────────────────────────────────────────────────────────────

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	period, err := domain.ParseLeaderboardPeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", progress.DefaultLeaderboardLimit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	entries, err := s.svc.Leaderboard(r.Context(), period, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"period":  period,
		"entries": entries,
	})
}
