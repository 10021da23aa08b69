package api

import (
	"net/http"

	"docmanager/internal/middleware"
	"docmanager/internal/models"
	"docmanager/internal/service"
	"docmanager/internal/util"
)

type AuthAction string

const (
	AuthRegister       AuthAction = "register"
	AuthLogin          AuthAction = "login"
	AuthVerify         AuthAction = "verify"
	AuthLogout         AuthAction = "logout"
	AuthChangePassword AuthAction = "change-password"
	AuthForgotPassword AuthAction = "forgot-password"
	AuthResetPassword  AuthAction = "reset-password"
)

func (h *Handlers) authRoutes() routeTable[AuthAction] {
	return routeTable[AuthAction]{
		AuthRegister:       {Public, post, h.Register},
		AuthLogin:          {Public, post, h.Login},
		AuthVerify:         {Authenticated, get, h.Verify},
		AuthLogout:         {Authenticated, post, h.Logout},
		AuthChangePassword: {Authenticated, post, h.ChangePassword},
		AuthForgotPassword: {Public, post, h.ForgotPassword},
		AuthResetPassword:  {Public, post, h.ResetPassword},
	}
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request, _ models.User) error {
	var req service.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	u, err := h.svc.Register(r.Context(), req)
	if err != nil {
		return err
	}
	util.WriteData(w, http.StatusCreated, "registration successful", u)
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request, _ models.User) error {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "login successful", res)
	return nil
}

func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request, caller models.User) error {
	util.WriteData(w, http.StatusOK, "", map[string]any{"user": caller})
	return nil
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request, _ models.User) error {
	if err := h.svc.Logout(r.Context(), middleware.Token(r.Context())); err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "logged out", nil)
	return nil
}

func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request, caller models.User) error {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if err := h.svc.ChangePassword(r.Context(), caller.ID, req.OldPassword, req.NewPassword); err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "password changed", nil)
	return nil
}

func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request, _ models.User) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "password reset instructions sent", nil)
	return nil
}

func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request, _ models.User) error {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if err := h.svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "password has been reset", nil)
	return nil
}
