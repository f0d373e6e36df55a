package api

import (
	"errors"
	"net/http"
	"time"

	"spectraconsole/internal/middleware"
	"spectraconsole/internal/service"
	"spectraconsole/internal/session"
	"spectraconsole/internal/store"
	"spectraconsole/internal/util"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	MFACode  string `json:"mfa_code"`
}

type registerRequest struct {
	Username               string `json:"username"`
	FullName               string `json:"full_name"`
	Email                  string `json:"email"`
	Password               string `json:"password"`
	PasswordConfirm        string `json:"password_confirm"`
	AcceptedLicense        bool   `json:"accepted_license"`
	AcceptedEULA           bool   `json:"accepted_eula"`
	AcceptedAUP            bool   `json:"accepted_aup"`
	AcceptedPrivacy        bool   `json:"accepted_privacy"`
	AcceptedSecurityPolicy bool   `json:"accepted_security_policy"`
	RegistrationToken      string `json:"registration_token"`
}

type sessionUser struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type sessionResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	Roles       []string    `json:"roles"`
	User        sessionUser `json:"user"`
	Mode        string      `json:"mode,omitempty"`
}

func (h *Handlers) writeSession(w http.ResponseWriter, res service.LoginResult, mode string) {
	h.setSessionCookie(w, res.Session.Token, res.Session.TTLSeconds)
	util.WriteJSON(w, http.StatusOK, sessionResponse{
		AccessToken: res.Session.Token,
		ExpiresAt:   res.Session.ExpiresAt,
		Roles:       res.User.Roles,
		User: sessionUser{
			Username: res.User.Username,
			FullName: res.User.FullName,
			Email:    res.User.Email,
		},
		Mode: mode,
	})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Login(r.Context(), service.LoginInput{Username: req.Username, Password: req.Password, MFACode: req.MFACode})
	if err != nil {
		if writeValidation(w, r, err) {
			return
		}
		if errors.Is(err, service.ErrInvalidCredentials) {
			util.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password", middleware.RequestID(r.Context()))
			return
		}
		h.logger.Error("login failed", "err", err, "request_id", middleware.RequestID(r.Context()))
		util.WriteError(w, http.StatusInternalServerError, "internal_error", "login failed", middleware.RequestID(r.Context()))
		return
	}
	h.writeSession(w, res, "")
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.svc.Register(r.Context(), service.RegisterInput{
		Username:               req.Username,
		FullName:               req.FullName,
		Email:                  req.Email,
		Password:               req.Password,
		PasswordConfirm:        req.PasswordConfirm,
		AcceptedLicense:        req.AcceptedLicense,
		AcceptedEULA:           req.AcceptedEULA,
		AcceptedAUP:            req.AcceptedAUP,
		AcceptedPrivacy:        req.AcceptedPrivacy,
		AcceptedSecurityPolicy: req.AcceptedSecurityPolicy,
		RegistrationToken:      req.RegistrationToken,
	})
	if err != nil {
		if writeValidation(w, r, err) {
			return
		}
		if errors.Is(err, store.ErrUserExists) {
			util.WriteError(w, http.StatusConflict, "username_unavailable", "username is not available", middleware.RequestID(r.Context()))
			return
		}
		h.logger.Error("registration failed", "err", err, "request_id", middleware.RequestID(r.Context()))
		util.WriteError(w, http.StatusInternalServerError, "registration_failed", "registration failed", middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, http.StatusCreated, map[string]any{"user": u, "status": "registered"})
}

func (h *Handlers) Demo(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Demo(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrDemoDisabled) {
			util.WriteError(w, http.StatusForbidden, "demo_disabled", "demo login is disabled", middleware.RequestID(r.Context()))
			return
		}
		h.logger.Error("demo login failed", "err", err, "request_id", middleware.RequestID(r.Context()))
		util.WriteError(w, http.StatusInternalServerError, "internal_error", "demo login failed", middleware.RequestID(r.Context()))
		return
	}
	h.writeSession(w, res, "demo")
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := session.ExtractToken(r); ok {
		h.svc.Logout(token)
	}
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.User(r.Context())
	if !ok {
		util.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.RequestID(r.Context()))
		return
	}
	sess, _ := middleware.Session(r.Context())
	util.WriteJSON(w, http.StatusOK, map[string]any{"user": u, "expires_at": sess.ExpiresAt})
}
