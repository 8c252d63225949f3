package http

import (
	"net/http"

	"spendly/internal/auth"
	"spendly/internal/core"
	applog "spendly/internal/log"
	"spendly/internal/services"
)

// sessionUser returns the authenticated caller or answers 401.
func sessionUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	sess, ok := auth.SessionFrom(r.Context())
	if !ok {
		writeError(w, r, applog.OpRead, core.ErrAuthRequired)
		return "", false
	}
	return sess.UserID, true
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	in := services.RegisterInput{
		Name:     p.Get("name"),
		Email:    p.Get("email"),
		Password: p.Raw("password"),
	}
	budget, _, err := p.Money("budget")
	if err != nil {
		writeError(w, r, applog.OpRegister, err)
		return
	}
	in.Budget = budget

	res, err := s.deps.Accounts.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, applog.OpRegister, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(toAuthDTO(res)).Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	res, err := s.deps.Accounts.Login(r.Context(), p.Get("email"), p.Raw("password"))
	if err != nil {
		writeError(w, r, applog.OpLogin, err)
		return
	}
	NewResponse().JSON(toAuthDTO(res)).Write(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	u, err := s.deps.Accounts.Me(r.Context(), userID)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewResponse().JSON(toUserDTO(u, true)).Write(w)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	var patch services.ProfilePatch
	if p.Has("name") {
		name := p.Get("name")
		patch.Name = &name
	}
	budget, present, err := p.Money("budget")
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	if present {
		patch.Budget = &budget
	}

	u, err := s.deps.Accounts.UpdateProfile(r.Context(), userID, patch)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewResponse().JSON(toUserDTO(u, false)).Write(w)
}

func handleCategories(w http.ResponseWriter, _ *http.Request) {
	NewResponse().JSON(core.SuggestedCategories).Write(w)
}
