package server

import (
	"net/http"
	"time"

	"github.com/apporbit/apporbit/api"
	"github.com/apporbit/apporbit/errors"
	"github.com/apporbit/apporbit/logging"
	"github.com/google/uuid"
)

// The payment processor is faked with opaque intent ids: creating an intent
// records it, confirming it unlocks membership. Swapping in a real processor
// only changes these two handlers.

func (s *Server) handleCreatePaymentIntent(r *http.Request) (any, error) {
	id, _ := IdentityFromContext(r.Context())

	var req api.PaymentIntentRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, errors.Codef(http.StatusBadRequest, "amount %d invalid", req.Amount).
			WithPublicMessage("Payment amount must be positive")
	}

	payment := api.Payment{
		IntentID:  "pi_" + uuid.NewString(),
		Email:     id.Email,
		Amount:    req.Amount,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Create(&payment); err != nil {
		return nil, err
	}
	return api.PaymentIntentResponse{IntentID: payment.IntentID}, nil
}

func (s *Server) handleConfirmPayment(r *http.Request) (any, error) {
	id, _ := IdentityFromContext(r.Context())

	var req api.ConfirmPaymentRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	var payment api.Payment
	if err := s.store.Read(req.IntentID, &payment); err != nil {
		return nil, err
	}
	if payment.Email != id.Email {
		return nil, errors.Mark(ErrPermissionDenied, 0).Append("payment belongs to another user")
	}
	if payment.Confirmed {
		return payment, nil
	}

	payment.Confirmed = true
	if err := s.store.Update(&payment); err != nil {
		return nil, err
	}

	var user api.User
	if err := s.store.Read(id.Email, &user); err != nil {
		return nil, err
	}
	user.Member = true
	if err := s.store.Update(&user); err != nil {
		return nil, err
	}
	logging.Infow(r.Context(), "membership unlocked", "email", user.Email, "intent_id", payment.IntentID)
	return payment, nil
}
