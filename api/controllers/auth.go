package controllers

import (
	"net/http"
	"time"

	"github.com/ingressolab/ingresso-backend/api/responses"
	"github.com/ingressolab/ingresso-backend/api/validators"
	"github.com/ingressolab/ingresso-backend/internal/buyers"
	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
)

type accountResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type sessionResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   accountResponse `json:"account"`
}

func toAccountResponse(buyer *models.Buyer) accountResponse {
	return accountResponse{
		ID:    buyer.ID.String(),
		Name:  buyer.Name,
		Email: buyer.Email,
		Role:  string(buyer.Role),
	}
}

// AuthRegister creates an account and returns its public profile.
func AuthRegister(svc buyers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var input buyers.RegisterInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		buyer, err := svc.Register(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toAccountResponse(buyer))
	}
}

// AuthLogin exchanges credentials for an access token.
func AuthLogin(svc buyers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var input buyers.LoginInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Login(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sessionResponse{
			Token:     session.Token,
			ExpiresAt: session.ExpiresAt,
			Account:   toAccountResponse(session.Buyer),
		})
	}
}
