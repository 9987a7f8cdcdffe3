package handler

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/rahibchy/exam-grading-system/internal/store"
)

type userKey struct{}

// requireUser checks HTTP basic credentials against the stored users.
func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			unauthorized(w)
			return
		}

		user, err := h.store.GetUserByUsername(username)
		if err != nil {
			slog.Error("failed to get user", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if user == nil || !user.Active {
			slog.Warn("rejected credentials", "username", username)
			unauthorized(w)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			slog.Warn("rejected credentials", "username", username)
			unauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), userKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) *store.User {
	if u, ok := ctx.Value(userKey{}).(*store.User); ok {
		return u
	}
	return &store.User{Username: "unknown"}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="examiner", charset="UTF-8"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// SeedAdmin creates the admin user when the store has no users yet.
func SeedAdmin(s *store.Store, password string) error {
	count, err := s.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if password == "" {
		slog.Warn("no admin password set, score overrides are disabled")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.CreateUser(store.User{Username: "admin", PasswordHash: string(hash), Active: true})
	return err
}
