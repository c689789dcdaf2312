package httpadapter

import (
	"context"
	"net/http"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

func (rt *Router) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := rt.accounts.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (rt *Router) disableUser(w http.ResponseWriter, r *http.Request) {
	rt.adminAction(w, r, "disable", rt.accounts.DisableUser)
}

func (rt *Router) enableUser(w http.ResponseWriter, r *http.Request) {
	rt.adminAction(w, r, "enable", rt.accounts.EnableUser)
}

func (rt *Router) deleteUser(w http.ResponseWriter, r *http.Request) {
	rt.adminAction(w, r, "delete", rt.accounts.DeleteUser)
}

func (rt *Router) adminAction(
	w http.ResponseWriter,
	r *http.Request,
	action string,
	fn func(ctx context.Context, username string) error,
) {
	username := r.PathValue("username")
	if err := fn(r.Context(), username); err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	actor, _ := identityFromContext(r.Context())
	rt.logger.Info("admin user action", "action", action, "username", username, "actor", actor.Username)
	w.WriteHeader(http.StatusNoContent)
}
