package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-assignments/internal/auth"
	"github.com/ukydev/fleet-assignments/internal/db"
	"github.com/ukydev/fleet-assignments/internal/middleware"
	"github.com/ukydev/fleet-assignments/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthHandler handles authentication and user administration requests
type AuthHandler struct {
	authService    *auth.Service
	userCollection db.UserCollection
	invitations    db.InvitationCollection
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, userCollection db.UserCollection, invitations db.InvitationCollection) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		userCollection: userCollection,
		invitations:    invitations,
	}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var loginReq models.LoginRequest
	if err := decodeJSON(w, r, &loginReq); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if loginReq.Username == "" || loginReq.Password == "" {
		writeError(w, r, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.userCollection.FindUserByUsername(r.Context(), loginReq.Username)
	if err != nil {
		if !errors.Is(err, db.ErrUserNotFound) {
			log.WithError(err).Error("Failed to look up user")
		}
		writeError(w, r, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		return
	}
	if !user.IsActive {
		writeError(w, r, http.StatusUnauthorized, auth.ErrUserInactive.Error())
		return
	}
	if !h.authService.CheckPassword(loginReq.Password, user.PasswordHash) {
		writeError(w, r, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		return
	}

	response, err := h.issueTokens(user)
	if err != nil {
		log.WithError(err).Error("Failed to issue tokens")
		writeError(w, r, http.StatusInternalServerError, "failed to generate token")
		return
	}

	if err := h.userCollection.UpdateLastLogin(r.Context(), user.ID.Hex()); err != nil {
		log.WithError(err).WithField("username", user.Username).Warn("Failed to update last login")
	}
	writeJSON(w, r, http.StatusOK, response)
}

// Register handles POST /api/auth/register. A valid invitation code issued
// for the email is required and is used up; new accounts are viewers until
// an admin changes their role.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var registerReq models.RegisterRequest
	if err := decodeJSON(w, r, &registerReq); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	registerReq.Email = strings.ToLower(strings.TrimSpace(registerReq.Email))

	if err := h.authService.ValidateUsername(registerReq.Username); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.authService.ValidateEmail(registerReq.Email); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.authService.ValidatePassword(registerReq.Password); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if registerReq.InvitationCode == "" {
		writeError(w, r, http.StatusBadRequest, "invitation_code is required")
		return
	}

	if _, err := h.userCollection.FindUserByUsername(r.Context(), registerReq.Username); err == nil {
		writeError(w, r, http.StatusConflict, "username already exists")
		return
	}
	if _, err := h.userCollection.FindUserByEmail(r.Context(), registerReq.Email); err == nil {
		writeError(w, r, http.StatusConflict, "email already exists")
		return
	}

	passwordHash, err := h.authService.HashPassword(registerReq.Password)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to hash password")
		return
	}

	invitation, err := h.invitations.ConsumeInvitation(r.Context(), registerReq.InvitationCode, registerReq.Email)
	if errors.Is(err, db.ErrInvitationNotFound) {
		writeError(w, r, http.StatusForbidden, "invalid invitation code")
		return
	}
	if err != nil {
		log.WithError(err).Error("Failed to consume invitation code")
		writeError(w, r, http.StatusInternalServerError, "failed to create user")
		return
	}

	now := time.Now()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Username:     registerReq.Username,
		Email:        registerReq.Email,
		PasswordHash: passwordHash,
		Role:         models.RoleViewer,
		FirstName:    registerReq.FirstName,
		LastName:     registerReq.LastName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.userCollection.InsertUser(r.Context(), user); err != nil {
		h.restoreInvitation(r.Context(), invitation)
		if errors.Is(err, db.ErrDuplicateUser) {
			writeError(w, r, http.StatusConflict, "username or email already exists")
			return
		}
		log.WithError(err).Error("Failed to insert user")
		writeError(w, r, http.StatusInternalServerError, "failed to create user")
		return
	}

	response, err := h.issueTokens(&user)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to generate token")
		return
	}
	log.WithFields(log.Fields{
		"username":   user.Username,
		"role":       user.Role,
		"invited_by": invitation.CreatedBy,
	}).Info("User registered")
	writeJSON(w, r, http.StatusCreated, response)
}

// restoreInvitation puts back a code whose registration failed after it was used up.
func (h *AuthHandler) restoreInvitation(ctx context.Context, invitation *models.InvitationCode) {
	if _, err := h.invitations.InsertInvitation(ctx, *invitation); err != nil {
		log.WithError(err).WithField("email", invitation.Email).Warn("Failed to restore invitation code")
	}
}

// GetProfile handles GET /api/auth/profile.
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "user context not found")
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}

// UpdateProfile handles PUT /api/auth/profile.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "user context not found")
		return
	}

	var updateReq struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
	}
	if err := decodeJSON(w, r, &updateReq); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "user not found")
		return
	}

	if updateReq.FirstName != "" {
		user.FirstName = updateReq.FirstName
	}
	if updateReq.LastName != "" {
		user.LastName = updateReq.LastName
	}
	if updateReq.Email != "" {
		if err := h.authService.ValidateEmail(updateReq.Email); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		existingUser, err := h.userCollection.FindUserByEmail(r.Context(), updateReq.Email)
		if err == nil && existingUser.ID.Hex() != claims.UserID {
			writeError(w, r, http.StatusConflict, "email already exists")
			return
		}
		user.Email = updateReq.Email
	}

	if err := h.userCollection.UpdateUser(r.Context(), claims.UserID, *user); err != nil {
		log.WithError(err).Error("Failed to update user")
		writeError(w, r, http.StatusInternalServerError, "failed to update user")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"message": "Profile updated successfully"})
}

// ChangePassword handles POST /api/auth/change-password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "user context not found")
		return
	}

	var passwordReq struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeJSON(w, r, &passwordReq); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if passwordReq.CurrentPassword == "" || passwordReq.NewPassword == "" {
		writeError(w, r, http.StatusBadRequest, "current password and new password are required")
		return
	}
	if err := h.authService.ValidatePassword(passwordReq.NewPassword); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "user not found")
		return
	}
	if !h.authService.CheckPassword(passwordReq.CurrentPassword, user.PasswordHash) {
		writeError(w, r, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	newPasswordHash, err := h.authService.HashPassword(passwordReq.NewPassword)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to hash password")
		return
	}
	user.PasswordHash = newPasswordHash
	if err := h.userCollection.UpdateUser(r.Context(), claims.UserID, *user); err != nil {
		log.WithError(err).Error("Failed to update password")
		writeError(w, r, http.StatusInternalServerError, "failed to update password")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

// ListUsers handles GET /api/users.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userCollection.FindUsers(r.Context())
	if err != nil {
		log.WithError(err).Error("Failed to list users")
		writeError(w, r, http.StatusInternalServerError, "failed to list users")
		return
	}
	writeJSON(w, r, http.StatusOK, users)
}

// UpdateUserRole handles PUT /api/users/{id}/role.
func (h *AuthHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var roleReq struct {
		Role     models.Role `json:"role"`
		IsActive *bool       `json:"is_active"`
	}
	if err := decodeJSON(w, r, &roleReq); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !models.IsValidRole(roleReq.Role) {
		writeError(w, r, http.StatusBadRequest, "invalid role")
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), id)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "user not found")
		return
	}
	user.Role = roleReq.Role
	if roleReq.IsActive != nil {
		user.IsActive = *roleReq.IsActive
	}
	if err := h.userCollection.UpdateUser(r.Context(), id, *user); err != nil {
		log.WithError(err).Error("Failed to update user role")
		writeError(w, r, http.StatusInternalServerError, "failed to update user")
		return
	}

	if claims, ok := middleware.GetUserFromContext(r.Context()); ok {
		log.WithFields(log.Fields{
			"by":       claims.Username,
			"username": user.Username,
			"role":     user.Role,
			"active":   user.IsActive,
		}).Info("User role changed")
	}
	writeJSON(w, r, http.StatusOK, user)
}

// DeleteUser handles DELETE /api/users/{id}. Admins cannot delete themselves.
func (h *AuthHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "user context not found")
		return
	}
	if claims.UserID == id {
		writeError(w, r, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	err := h.userCollection.DeleteUser(r.Context(), id)
	if errors.Is(err, db.ErrUserNotFound) {
		writeError(w, r, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.WithError(err).Error("Failed to delete user")
		writeError(w, r, http.StatusInternalServerError, "failed to delete user")
		return
	}
	log.WithFields(log.Fields{"by": claims.Username, "user_id": id}).Info("User deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) issueTokens(user *models.User) (*models.LoginResponse, error) {
	token, err := h.authService.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{
		Token:        token,
		RefreshToken: refreshToken,
		User:         *user,
	}, nil
}
