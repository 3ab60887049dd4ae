package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-assignments/internal/db"
	"github.com/ukydev/fleet-assignments/internal/middleware"
	"github.com/ukydev/fleet-assignments/internal/models"
)

// InvitationHandler issues and manages registration invitation codes. Every
// caller only sees the codes they issued.
type InvitationHandler struct {
	invitations db.InvitationCollection
	users       db.UserCollection
	now         func() time.Time
}

// NewInvitationHandler creates an invitation handler.
func NewInvitationHandler(invitations db.InvitationCollection, users db.UserCollection) *InvitationHandler {
	return &InvitationHandler{invitations: invitations, users: users, now: time.Now}
}

// Create handles POST /api/invitation-codes.
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "user context not found")
		return
	}
	email, ok := h.recipient(w, r)
	if !ok {
		return
	}

	invitation, err := h.invitations.InsertInvitation(r.Context(), models.InvitationCode{
		Code:      uuid.NewString(),
		Email:     email,
		CreatedBy: claims.UserID,
		CreatedAt: h.now().UTC(),
	})
	if errors.Is(err, db.ErrDuplicateInvitation) {
		writeError(w, r, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	log.WithFields(log.Fields{"by": claims.Username, "email": email}).Info("Invitation code issued")
	writeJSON(w, r, http.StatusCreated, invitation)
}

// List handles GET /api/invitation-codes.
func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "user context not found")
		return
	}
	invitations, err := h.invitations.FindInvitationsByCreator(r.Context(), claims.UserID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, invitations)
}

// ChangeEmail handles PATCH /api/invitation-codes/{code}.
func (h *InvitationHandler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "user context not found")
		return
	}
	email, ok := h.recipient(w, r)
	if !ok {
		return
	}

	invitation, err := h.invitations.UpdateInvitationEmail(r.Context(), r.PathValue("code"), claims.UserID, email)
	switch {
	case errors.Is(err, db.ErrInvitationNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, db.ErrDuplicateInvitation):
		writeError(w, r, http.StatusConflict, err.Error())
	case err != nil:
		writeEngineError(w, r, err)
	default:
		writeJSON(w, r, http.StatusOK, invitation)
	}
}

// Delete handles DELETE /api/invitation-codes/{code}.
func (h *InvitationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "user context not found")
		return
	}
	err := h.invitations.DeleteInvitation(r.Context(), r.PathValue("code"), claims.UserID)
	switch {
	case errors.Is(err, db.ErrInvitationNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case err != nil:
		writeEngineError(w, r, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// recipient decodes and validates the invited email. Addresses that already
// belong to an account are rejected with 409.
func (h *InvitationHandler) recipient(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req models.InvitationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return "", false
	}
	email, err := req.NormalizedEmail()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return "", false
	}

	_, err = h.users.FindUserByEmail(r.Context(), email)
	switch {
	case err == nil:
		writeError(w, r, http.StatusConflict, "a user with this email is already registered")
		return "", false
	case !errors.Is(err, db.ErrUserNotFound):
		writeEngineError(w, r, err)
		return "", false
	}
	return email, true
}
