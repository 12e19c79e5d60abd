package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"church-quiz-service/internal/app"
	"church-quiz-service/internal/domain"
)

// SessionCookie carries the player session id.
const SessionCookie = "quiz_session"

// APIHandler serves the JSON API: accounts, the game, the leaderboard and
// the admin console.
type APIHandler struct {
	quiz        *app.QuizService
	auth        *app.AuthService
	leaderboard *app.LeaderboardService
	admin       *app.AdminService
}

func NewAPIHandler(quiz *app.QuizService, auth *app.AuthService, leaderboard *app.LeaderboardService, admin *app.AdminService) *APIHandler {
	return &APIHandler{quiz: quiz, auth: auth, leaderboard: leaderboard, admin: admin}
}

// Register mounts every API route on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/register", h.registrationStatus)
	mux.HandleFunc("POST /api/register", h.register)
	mux.HandleFunc("POST /api/login", h.login)
	mux.HandleFunc("POST /api/admin/login", h.adminLogin)
	mux.HandleFunc("POST /api/password/reset", h.resetPassword)
	mux.HandleFunc("POST /api/logout", h.logout)
	mux.HandleFunc("GET /api/me", h.withSession(h.me))

	mux.HandleFunc("GET /api/game", h.withSession(h.gameState))
	mux.HandleFunc("POST /api/game/start", h.withSession(h.gameAction(h.quiz.Start)))
	mux.HandleFunc("POST /api/game/next", h.withSession(h.gameAction(h.quiz.Advance)))
	mux.HandleFunc("POST /api/game/restart", h.withSession(h.gameAction(h.quiz.Restart)))
	mux.HandleFunc("POST /api/game/abandon", h.withSession(h.gameAction(h.quiz.Abandon)))
	mux.HandleFunc("POST /api/game/answer", h.withSession(h.answer))

	mux.HandleFunc("GET /api/leaderboard", h.top)

	mux.HandleFunc("GET /api/admin/users", h.withAdmin(h.listUsers))
	mux.HandleFunc("POST /api/admin/users", h.withAdmin(h.addUser))
	mux.HandleFunc("PUT /api/admin/users/{id}/role", h.withAdmin(h.setRole))
	mux.HandleFunc("PUT /api/admin/users/{id}/password", h.withAdmin(h.setPassword))
	mux.HandleFunc("DELETE /api/admin/users/{id}", h.withAdmin(h.deleteUser))
	mux.HandleFunc("DELETE /api/admin/users/{id}/scores", h.withAdmin(h.deleteUserScores))

	mux.HandleFunc("GET /api/admin/questions", h.withAdmin(h.listQuestions))
	mux.HandleFunc("POST /api/admin/questions", h.withAdmin(h.addQuestion))
	mux.HandleFunc("PUT /api/admin/questions", h.withAdmin(h.replaceQuestions))
	mux.HandleFunc("PUT /api/admin/questions/{pos}", h.withAdmin(h.updateQuestion))
	mux.HandleFunc("DELETE /api/admin/questions/{pos}", h.withAdmin(h.deleteQuestion))

	mux.HandleFunc("GET /api/admin/scores", h.withAdmin(h.listScores))
	mux.HandleFunc("PUT /api/admin/scores/{pos}", h.withAdmin(h.updateScore))
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, session *app.PlayerSession)

// withSession resolves the session cookie; anonymous callers get 401.
func (h *APIHandler) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := h.session(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r, session)
	}
}

// withAdmin additionally requires the admin role.
func (h *APIHandler) withAdmin(next sessionHandler) http.HandlerFunc {
	return h.withSession(func(w http.ResponseWriter, r *http.Request, session *app.PlayerSession) {
		if !session.User.IsAdmin() {
			writeError(w, r, fmt.Errorf("%w: admin privileges required", domain.ErrForbidden))
			return
		}
		next(w, r, session)
	})
}

func (h *APIHandler) session(r *http.Request) (*app.PlayerSession, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, domain.ErrSessionNotFound
	}
	return h.quiz.Session(r.Context(), cookie.Value)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Confirm  string `json:"confirmPassword"`
}

type userResponse struct {
	User domain.User `json:"user"`
}

func (h *APIHandler) registrationStatus(w http.ResponseWriter, r *http.Request) {
	open, err := h.auth.RegistrationOpen(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"open": open})
}

func (h *APIHandler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.auth.Register(r.Context(), req.Username, req.Password, req.Confirm)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{User: user})
}

func (h *APIHandler) login(w http.ResponseWriter, r *http.Request) {
	h.startSession(w, r, h.auth.Login)
}

func (h *APIHandler) adminLogin(w http.ResponseWriter, r *http.Request) {
	h.startSession(w, r, h.auth.AdminLogin)
}

func (h *APIHandler) startSession(w http.ResponseWriter, r *http.Request, authenticate func(context.Context, string, string) (domain.User, error)) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// a fresh login replaces whatever session the browser held
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		h.quiz.CloseSession(r.Context(), cookie.Value)
	}
	session, err := h.quiz.OpenSession(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

func (h *APIHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req.Username, req.Password, req.Confirm); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		h.quiz.CloseSession(r.Context(), cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) me(w http.ResponseWriter, _ *http.Request, session *app.PlayerSession) {
	writeJSON(w, http.StatusOK, userResponse{User: session.User})
}

func (h *APIHandler) gameState(w http.ResponseWriter, r *http.Request, session *app.PlayerSession) {
	view, err := h.quiz.State(r.Context(), session.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *APIHandler) gameAction(action func(context.Context, string) (domain.GameView, error)) sessionHandler {
	return func(w http.ResponseWriter, r *http.Request, session *app.PlayerSession) {
		view, err := action(r.Context(), session.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (h *APIHandler) answer(w http.ResponseWriter, r *http.Request, session *app.PlayerSession) {
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.quiz.Submit(r.Context(), session.ID, req.Answer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *APIHandler) top(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrValidation))
			return
		}
		limit = n
	}
	entries, err := h.leaderboard.Top(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type addUserRequest struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

func (h *APIHandler) listUsers(w http.ResponseWriter, r *http.Request, _ *app.PlayerSession) {
	users, err := h.admin.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *APIHandler) addUser(w http.ResponseWriter, r *http.Request, _ *app.PlayerSession) {
	var req addUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Role == "" {
		req.Role = domain.RoleUser
	}
	role, err := domain.ParseRole(string(req.Role))
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.admin.AddUser(r.Context(), req.Username, req.Password, role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{User: user})
}

func (h *APIHandler) setRole(w http.ResponseWriter, r *http.Request, session *app.PlayerSession) {
	var req struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.admin.SetRole(r.Context(), session.User, r.PathValue("id"), role); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) setPassword(w http.ResponseWriter, r *http.Request, _ *app.PlayerSession) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.admin.ResetUserPassword(r.Context(), r.PathValue("id"), req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) deleteUser(w http.ResponseWriter, r *http.Request, session *app.PlayerSession) {
	if err := h.admin.DeleteUser(r.Context(), session.User, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) deleteUserScores(w http.ResponseWriter, r *http.Request, _ *app.PlayerSession) {
	n, err := h.admin.DeleteScoresForUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

type indexedQuestion struct {
	Position int `json:"position"`
	domain.Question
}

func (h *APIHandler) listQuestions(w http.ResponseWriter, r *http.Request, _ *app.PlayerSession) {
	qs, err := h.admin.ListQuestions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]indexedQuestion, len(qs))
	for i, q := range qs {
		out[i] = indexedQuestion{Position: i, Question: q}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *APIHandler) addQuestion(w http.ResponseWriter, r *http.Request, _ *app.PlayerSession) {
	var q domain.Question
	if err := decodeJSON(r, &q); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.admin.AddQuestion(r.Context(), q); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *APIHandler) replaceQuestions(w http.ResponseWriter, r *http.Request, _ *app.PlayerSession) {
	var qs []domain.Question
	if err := decodeJSON(r, &qs); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.admin.ReplaceQuestions(r.Context(), qs); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) updateQuestion(w http.ResponseWriter, r *http.Request, _ *app.PlayerSession) {
	pos, err := position(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var q domain.Question
	if err := decodeJSON(r, &q); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.admin.UpdateQuestion(r.Context(), pos, q); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) deleteQuestion(w http.ResponseWriter, r *http.Request, _ *app.PlayerSession) {
	pos, err := position(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.admin.DeleteQuestion(r.Context(), pos); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) listScores(w http.ResponseWriter, r *http.Request, _ *app.PlayerSession) {
	rows, err := h.admin.ListScores(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *APIHandler) updateScore(w http.ResponseWriter, r *http.Request, _ *app.PlayerSession) {
	pos, err := position(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Score int    `json:"score"`
		Date  string `json:"date"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.admin.UpdateScore(r.Context(), pos, req.Score, req.Date); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func position(r *http.Request) (int, error) {
	pos, err := strconv.Atoi(r.PathValue("pos"))
	if err != nil || pos < 0 {
		return 0, fmt.Errorf("%w: position must be a non-negative integer", domain.ErrValidation)
	}
	return pos, nil
}
