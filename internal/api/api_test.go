package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volo-kola/kola/internal/app/progress"
	"github.com/volo-kola/kola/internal/health"
	"github.com/volo-kola/kola/internal/infra/sqlite"
)

var testNow = time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rules := progress.Rules{MaxHearts: 5, RegenInterval: 4 * time.Hour, Location: time.UTC}
	svc := progress.NewService(db, rules, progress.WithClock(func() time.Time { return testNow }))
	return NewServer(svc, nil), db
}

func do(t *testing.T, h http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body), "body: %s", w.Body.String())
	return body
}

func errorType(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	e, ok := decode(t, w)["error"].(map[string]interface{})
	require.True(t, ok, "missing error object")
	return e["type"].(string)
}

func createUser(t *testing.T, h http.Handler, id string) {
	t.Helper()
	w := do(t, h, "POST", "/users", "", `{"id":"`+id+`","displayName":"Learner `+id+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

// ─── Health ─────────────────────────────────────────────────────────────────

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestAPI_Health(t *testing.T) {
	srv, db := newTestServer(t)

	w := do(t, srv.Handler(), "GET", "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	checker := health.NewChecker(db, nil)
	checker.RunOnce(context.Background())
	srv.SetHealth(checker)
	w = do(t, srv.Handler(), "GET", "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestAPI_HealthUnhealthy(t *testing.T) {
	srv, _ := newTestServer(t)

	checker := health.NewChecker(pingFunc(func(context.Context) error {
		return errors.New("disk gone")
	}), nil)
	checker.RunOnce(context.Background())
	srv.SetHealth(checker)

	w := do(t, srv.Handler(), "GET", "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unhealthy", decode(t, w)["status"])
}

func TestAPI_Metrics(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv.Handler(), "GET", "/metrics", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "metrics are off by default")

	srv.EnableMetrics()
	h := srv.Handler()
	do(t, h, "GET", "/health", "", "")
	w = do(t, h, "GET", "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "kola_http_request_duration_seconds")
}

// ─── Identity ───────────────────────────────────────────────────────────────

func TestAPI_RequiresUserHeader(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	for _, tc := range []struct{ method, path string }{
		{"GET", "/user/me"},
		{"GET", "/challenges"},
		{"POST", "/exercises/ex1/complete"},
		{"POST", "/lessons/l1/complete"},
		{"POST", "/challenges/c1/claim"},
		{"GET", "/leaderboard"},
	} {
		w := do(t, h, tc.method, tc.path, "", `{}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
		assert.Equal(t, "unauthorized", errorType(t, w))
	}
}

func TestAPI_UnknownUser(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv.Handler(), "GET", "/user/me", "ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "user_not_found", errorType(t, w))
}

func TestAPI_CreateUser(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	createUser(t, h, "u1")

	w := do(t, h, "POST", "/users", "", `{"id":"u1","displayName":"again"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "user_exists", errorType(t, w))

	w = do(t, h, "POST", "/users", "", `{"displayName":"no id"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ─── Activity ───────────────────────────────────────────────────────────────

func TestAPI_CompleteExercise(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	createUser(t, h, "u1")

	w := do(t, h, "POST", "/exercises/ex1/complete", "u1", `{"isCorrect":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, float64(11), body["xpEarned"])
	assert.Equal(t, float64(5), body["heartsRemaining"])
	assert.Equal(t, false, body["outOfHearts"])

	w = do(t, h, "POST", "/exercises/ex2/complete", "u1", `{"isCorrect":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, float64(1), body["heartsLost"])
	assert.NotNil(t, body["nextHeartRegeneration"])
}

func TestAPI_CompleteExercise_BadBody(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	createUser(t, h, "u1")

	for _, body := range []string{"", `{}`, `{"isCorrect":"yes"}`, `not json`} {
		w := do(t, h, "POST", "/exercises/ex1/complete", "u1", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
		assert.Equal(t, "invalid_input", errorType(t, w))
	}
}

func TestAPI_OutOfHeartsIsNotAnError(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	createUser(t, h, "u1")

	for i := 0; i < 5; i++ {
		w := do(t, h, "POST", "/exercises/ex/complete", "u1", `{"isCorrect":false}`)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := do(t, h, "POST", "/exercises/ex/complete", "u1", `{"isCorrect":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["outOfHearts"])
	assert.Equal(t, float64(0), body["xpEarned"])
}

func TestAPI_CompleteLesson(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	createUser(t, h, "u1")

	w := do(t, h, "POST", "/lessons/l1/complete", "u1", `{"correctAnswers":5,"totalQuestions":5}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, float64(33), body["xpEarned"])
	assert.Equal(t, true, body["perfect"])

	w = do(t, h, "POST", "/lessons/l1/complete", "u1", `{"correctAnswers":6,"totalQuestions":5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "POST", "/lessons/l1/complete", "u1", `{"correctAnswers":3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_Me(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	createUser(t, h, "u1")
	do(t, h, "POST", "/lessons/l1/complete", "u1", `{"correctAnswers":5,"totalQuestions":5}`)

	w := do(t, h, "GET", "/user/me", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(5), body["hearts"])
	assert.Equal(t, float64(5), body["maxHearts"])
	assert.Nil(t, body["nextHeartRegeneration"])
	assert.Equal(t, float64(1), body["currentStreak"])
	assert.Equal(t, float64(10), body["streakBonusPercent"])
	assert.Equal(t, body["totalXP"], body["todayXP"])
	assert.Equal(t, body["totalXP"], body["weeklyXP"])
	streak, ok := body["streak"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(0), streak["daysSinceLastActivity"])
	assert.Equal(t, false, streak["needsUpdate"])
}

// ─── Challenges ─────────────────────────────────────────────────────────────

type challengeList struct {
	Challenges []struct {
		ID          string  `json:"id"`
		Type        string  `json:"type"`
		Target      int     `json:"target"`
		RewardXP    int64   `json:"rewardXP"`
		Completed   bool    `json:"isCompleted"`
		ProgressPct float64 `json:"progressPct"`
	} `json:"challenges"`
}

func listChallenges(t *testing.T, h http.Handler, user string) challengeList {
	t.Helper()
	w := do(t, h, "GET", "/challenges", user, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list challengeList
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	require.Len(t, list.Challenges, 3)
	return list
}

func TestAPI_ClaimChallenge(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	createUser(t, h, "u1")

	var lessonsID, practiceID string
	var target int
	var reward int64
	for _, c := range listChallenges(t, h, "u1").Challenges {
		switch c.Type {
		case "lessons":
			lessonsID, target, reward = c.ID, c.Target, c.RewardXP
		case "practice":
			practiceID = c.ID
		}
	}

	w := do(t, h, "POST", "/challenges/"+practiceID+"/claim", "u1", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "not_completed", errorType(t, w))

	w = do(t, h, "POST", "/challenges/nope/claim", "u1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "challenge_not_found", errorType(t, w))

	for i := 0; i < target; i++ {
		do(t, h, "POST", "/lessons/l/complete", "u1", `{"correctAnswers":1,"totalQuestions":5}`)
	}

	w = do(t, h, "POST", "/challenges/"+lessonsID+"/claim", "u1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(reward), decode(t, w)["rewardXP"])

	w = do(t, h, "POST", "/challenges/"+lessonsID+"/claim", "u1", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_claimed", errorType(t, w))
}

// ─── Charts, Leaderboard & Achievements ─────────────────────────────────────

func TestAPI_DailyXP(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	createUser(t, h, "u1")
	do(t, h, "POST", "/exercises/ex1/complete", "u1", `{"isCorrect":true}`)

	w := do(t, h, "GET", "/user/me/xp/daily", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	days, ok := body["days"].([]interface{})
	require.True(t, ok)
	assert.Len(t, days, progress.DefaultChartDays)
	assert.Equal(t, float64(16), body["total"])

	w = do(t, h, "GET", "/user/me/xp/daily?days=30", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["days"], 30)

	for _, q := range []string{"days=0", "days=366", "days=abc"} {
		w = do(t, h, "GET", "/user/me/xp/daily?"+q, "u1", "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestAPI_Leaderboard(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	createUser(t, h, "u1")
	createUser(t, h, "u2")
	do(t, h, "POST", "/lessons/l1/complete", "u2", `{"correctAnswers":5,"totalQuestions":5}`)
	do(t, h, "POST", "/exercises/ex1/complete", "u1", `{"isCorrect":true}`)

	w := do(t, h, "GET", "/leaderboard?period=day", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var board struct {
		Period  string `json:"period"`
		Entries []struct {
			Rank   int    `json:"rank"`
			UserID string `json:"userId"`
		} `json:"entries"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&board))
	assert.Equal(t, "day", board.Period)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, "u2", board.Entries[0].UserID)
	assert.Equal(t, 1, board.Entries[0].Rank)
	assert.Equal(t, 2, board.Entries[1].Rank)

	w = do(t, h, "GET", "/leaderboard?period=year", "u1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, h, "GET", "/leaderboard?limit=-1", "u1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_Achievements(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	createUser(t, h, "u1")
	do(t, h, "POST", "/lessons/l1/complete", "u1", `{"correctAnswers":5,"totalQuestions":5}`)

	w := do(t, h, "GET", "/user/me/achievements", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(2), body["unlocked"])
	assert.Greater(t, body["total"].(float64), float64(2))
}

func TestAPI_AchievementByCode(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	createUser(t, h, "u1")
	do(t, h, "POST", "/lessons/l1/complete", "u1", `{"correctAnswers":5,"totalQuestions":5}`)

	w := do(t, h, "GET", "/user/me/achievements/first_perfect", "u1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "first_perfect", body["code"])
	assert.Equal(t, true, body["unlocked"])
	assert.NotEmpty(t, body["unlockedAt"])

	w = do(t, h, "GET", "/user/me/achievements/streak_30", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, false, body["unlocked"])
	assert.Nil(t, body["unlockedAt"])

	w = do(t, h, "GET", "/user/me/achievements/no_such_code", "u1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "achievement_not_found", errorType(t, w))
}

// ─── Deadlines ──────────────────────────────────────────────────────────────

func TestAPI_DeadlineReportedOnce(t *testing.T) {
	srv, _ := newTestServer(t)
	createUser(t, srv.Handler(), "u1")

	srv.SetTimeout(time.Nanosecond)
	w := do(t, srv.Handler(), "GET", "/user/me", "u1", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// Exactly one error document; nothing appended after it.
	dec := json.NewDecoder(w.Body)
	var body map[string]interface{}
	require.NoError(t, dec.Decode(&body))
	assert.Equal(t, "timeout", body["error"].(map[string]interface{})["type"])
	assert.False(t, dec.More())
}
