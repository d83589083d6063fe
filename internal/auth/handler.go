package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"catalog-api/internal/token"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createRoleRequest struct {
	Name string `json:"name"`
}

type addUserToRoleRequest struct {
	Email    string `json:"email"`
	RoleName string `json:"role_name"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := h.service.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			// Uniform unauthorized with an empty body, whatever the cause.
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decodeBody(w, r, &body) {
		return
	}

	body.AccessToken = strings.TrimSpace(body.AccessToken)
	body.RefreshToken = strings.TrimSpace(body.RefreshToken)
	if body.AccessToken == "" || body.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "Invalid client request")
		return
	}

	result, err := h.service.Refresh(r.Context(), body.AccessToken, body.RefreshToken)
	if err != nil {
		if errors.Is(err, token.ErrInvalidToken) || errors.Is(err, ErrRefreshMismatch) {
			writeError(w, http.StatusBadRequest, "Invalid access token/refresh token")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.PathValue("username"))
	if username == "" {
		writeError(w, http.StatusBadRequest, "invalid user name")
		return
	}

	if err := h.service.Revoke(r.Context(), username); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusBadRequest, "invalid user name")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to revoke")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !decodeBody(w, r, &body) {
		return
	}

	if err := h.service.Register(r.Context(), body.Username, body.Email, body.Password); err != nil {
		if errors.Is(err, ErrUserExists) {
			writeJSON(w, http.StatusBadRequest, Response{Status: "Error", Message: "User already exists"})
			return
		}
		sentry.CaptureException(err)
		writeJSON(w, http.StatusInternalServerError, Response{Status: "Error", Message: "User creation failed"})
		return
	}

	writeJSON(w, http.StatusOK, Response{Status: "Success", Message: "User created successfully"})
}

func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var body createRoleRequest
	if !decodeBody(w, r, &body) {
		return
	}

	if err := h.service.CreateRole(r.Context(), body.Name); err != nil {
		if errors.Is(err, ErrRoleExists) {
			writeJSON(w, http.StatusBadRequest, Response{Status: "Error", Message: "Role already exists"})
			return
		}
		sentry.CaptureException(err)
		writeJSON(w, http.StatusInternalServerError, Response{Status: "Error", Message: fmt.Sprintf("Issue adding the %s role", body.Name)})
		return
	}

	writeJSON(w, http.StatusOK, Response{Status: "Success", Message: fmt.Sprintf("Role %s added successfully", body.Name)})
}

func (h *Handler) AddUserToRole(w http.ResponseWriter, r *http.Request) {
	var body addUserToRoleRequest
	if !decodeBody(w, r, &body) {
		return
	}

	if err := h.service.AddUserToRole(r.Context(), body.Email, body.RoleName); err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			writeJSON(w, http.StatusBadRequest, Response{Status: "Error", Message: "Unable to find user"})
		case errors.Is(err, ErrRoleNotFound):
			writeJSON(w, http.StatusBadRequest, Response{Status: "Error", Message: fmt.Sprintf("Role %s does not exist", body.RoleName)})
		default:
			sentry.CaptureException(err)
			writeJSON(w, http.StatusInternalServerError, Response{Status: "Error", Message: fmt.Sprintf("Unable to add user %s to the %s role", body.Email, body.RoleName)})
		}
		return
	}

	writeJSON(w, http.StatusOK, Response{Status: "Success", Message: fmt.Sprintf("User %s added to the %s role", body.Email, body.RoleName)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
