package handler

import (
	"context"
	"errors"
	"github.com/rs/zerolog/hlog"
	"net/http"
	"townmarket/internal/app/apperr"
	"townmarket/internal/app/logger"
	"townmarket/internal/app/model"
	"townmarket/internal/app/session"
	"townmarket/internal/app/storage"
)

type AccountOpener interface {
	Open(ctx context.Context, id string) (*model.Account, error)
}

type UserHandler struct {
	session  session.Creator
	users    storage.UserRepository
	accounts AccountOpener
}

func NewUserHandler(users storage.UserRepository, accounts AccountOpener, sm session.Creator) *UserHandler {
	return &UserHandler{
		session:  sm,
		users:    users,
		accounts: accounts,
	}
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	log := logger.Get(r.Context(), "Handler.User.Register")

	in := struct {
		Phone    string `json:"login" validate:"required,e164"`
		Name     string `json:"name" validate:"required,min=1,max=64"`
		Password string `json:"password" validate:"required,min=8,max=72"`
	}{}

	if err := readBody(r, &in); err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	if !validateData(w, in) {
		return
	}

	u, err := h.users.Create(r.Context(), &model.User{
		ID:       in.Phone,
		Name:     in.Name,
		Password: in.Password,
	})
	if err != nil {
		writeServiceError(log, w, err)
		return
	}

	if _, err := h.accounts.Open(r.Context(), u.ID); err != nil {
		writeServiceError(log, w, err)
		return
	}

	h.writeToken(w, r, u)
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	hlog.FromRequest(r).Debug().Msg("Handler.User.Login")

	in := struct {
		Phone    string `json:"login" validate:"required,e164"`
		Password string `json:"password" validate:"required,min=8,max=72"`
	}{}

	if err := readBody(r, &in); err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	if !validateData(w, in) {
		return
	}

	u, err := h.users.ReadByIDAndPassword(r.Context(), in.Phone, in.Password)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			WriteError(w, apperr.ErrUnauthorized, http.StatusUnauthorized)
			return
		}
		WriteError(w, err, http.StatusInternalServerError)
		return
	}

	h.writeToken(w, r, u)
}

func (h *UserHandler) writeToken(w http.ResponseWriter, r *http.Request, u *model.User) {
	token, err := h.session.Create(r.Context(), u)
	if err != nil {
		WriteError(w, err, http.StatusInternalServerError)
		return
	}

	out := struct {
		Token string `json:"token"`
	}{token}

	w.Header().Add("Authorization", "Bearer "+token)

	WriteResponse(w, out, http.StatusOK)
}
