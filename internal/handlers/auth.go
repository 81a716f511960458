package handlers

import (
	"log"
	"net/http"

	"github.com/fixithostel/fixit/internal/api"
	"github.com/fixithostel/fixit/internal/middleware"
	"github.com/fixithostel/fixit/internal/services"
	"github.com/fixithostel/fixit/internal/utils"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	jwtAuth *middleware.JWTAuthMiddleware
	users   *services.UserService
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(jwtAuth *middleware.JWTAuthMiddleware, users *services.UserService) *AuthHandler {
	return &AuthHandler{
		jwtAuth: jwtAuth,
		users:   users,
	}
}

// SetupRoutes sets up authentication routes
func (h *AuthHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/register", h.handleRegister)
	mux.HandleFunc("GET /auth/verify", h.handleVerify)
}

// handleLogin handles POST /auth/login
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.Authenticate(req.Email, req.Password)
	if err != nil {
		if services.IsKind(err, services.ErrorKindInvalidArgument) {
			log.Printf("AuthHandler: Failed login attempt for '%s' from %s", utils.EscapeForLogging(req.Email, 64), r.RemoteAddr)
			api.RespondError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		respondServiceError(w, r, err)
		return
	}

	token, err := h.jwtAuth.GenerateToken(user)
	if err != nil {
		log.Printf("AuthHandler: Failed to generate token for user '%s': %v", user.ID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	log.Printf("AuthHandler: User '%s' (%s) logged in from %s", user.Email, user.Role, r.RemoteAddr)

	api.RespondJSON(w, http.StatusOK, api.LoginResponse{
		Token:     token,
		ExpiresIn: h.jwtAuth.ExpirySeconds(),
		User:      *user,
	})
}

// handleRegister handles POST /auth/register. Self-registration always
// creates a student account.
func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.Register(services.RegisterInput{
		Email:       req.Email,
		Name:        req.Name,
		Password:    req.Password,
		HostelBlock: req.HostelBlock,
		RoomNumber:  req.RoomNumber,
		SlackUserID: req.SlackUserID,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	token, err := h.jwtAuth.GenerateToken(user)
	if err != nil {
		log.Printf("AuthHandler: Failed to generate token for user '%s': %v", user.ID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	api.RespondJSON(w, http.StatusCreated, api.LoginResponse{
		Token:     token,
		ExpiresIn: h.jwtAuth.ExpirySeconds(),
		User:      *user,
	})
}

// handleVerify handles GET /auth/verify - verifies if the current token is valid
func (h *AuthHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		api.RespondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"valid":   true,
		"user_id": claims.UserID,
		"email":   claims.Email,
		"role":    claims.Role,
	})
}
