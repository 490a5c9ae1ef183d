package server

import (
	"net/http"
	"sort"
	"time"

	"github.com/apporbit/apporbit/api"
	"github.com/apporbit/apporbit/errors"
	"github.com/go-chi/chi/v5"
)

// handleValidCoupons lists coupons that have not yet expired, for display on
// the membership page.
func (s *Server) handleValidCoupons(r *http.Request) (any, error) {
	coupons, err := s.listCoupons()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	valid := coupons[:0]
	for _, c := range coupons {
		if !c.Expired(now) {
			valid = append(valid, c)
		}
	}
	return valid, nil
}

// handleCheckCoupon validates a code at checkout. Expired codes answer 410 so
// the client can tell "never existed" from "no longer valid".
func (s *Server) handleCheckCoupon(r *http.Request) (any, error) {
	var coupon api.Coupon
	if err := s.store.Read(chi.URLParam(r, "code"), &coupon); err != nil {
		return nil, err
	}
	if coupon.Expired(time.Now()) {
		return nil, errors.Codef(http.StatusGone, "coupon %s expired", coupon.Code).
			WithPublicMessage("This coupon has expired")
	}
	return coupon, nil
}

func (s *Server) handleListCoupons(r *http.Request) (any, error) {
	return s.listCoupons()
}

func (s *Server) handleAddCoupon(r *http.Request) (any, error) {
	var in api.CouponInput
	if err := decode(r, &in); err != nil {
		return nil, err
	}
	coupon, err := couponFromInput(in)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(&coupon); err != nil {
		return nil, err
	}
	return coupon, nil
}

func (s *Server) handleUpdateCoupon(r *http.Request) (any, error) {
	var in api.CouponInput
	if err := decode(r, &in); err != nil {
		return nil, err
	}
	in.Code = chi.URLParam(r, "code")
	coupon, err := couponFromInput(in)
	if err != nil {
		return nil, err
	}
	if err := s.store.Update(&coupon); err != nil {
		return nil, err
	}
	return coupon, nil
}

func (s *Server) handleDeleteCoupon(r *http.Request) (any, error) {
	var coupon api.Coupon
	if err := s.store.Read(chi.URLParam(r, "code"), &coupon); err != nil {
		return nil, err
	}
	if err := s.store.Delete(&coupon); err != nil {
		return nil, err
	}
	return coupon, nil
}

func (s *Server) listCoupons() ([]api.Coupon, error) {
	var coupons []api.Coupon
	if err := s.store.List(&coupons, api.Coupon{}); err != nil {
		return nil, err
	}
	sort.Slice(coupons, func(i, j int) bool {
		return coupons[i].Code < coupons[j].Code
	})
	return coupons, nil
}

func couponFromInput(in api.CouponInput) (api.Coupon, error) {
	switch {
	case in.Code == "":
		return api.Coupon{}, errors.Codef(http.StatusBadRequest, "coupon code required").
			WithPublicMessage("Coupon code is required")
	case in.Discount < 1 || in.Discount > 100:
		return api.Coupon{}, errors.Codef(http.StatusBadRequest, "discount %d out of range", in.Discount).
			WithPublicMessage("Discount must be between 1 and 100 percent")
	}
	return api.Coupon{
		Code:        in.Code,
		Discount:    in.Discount,
		Description: in.Description,
		ExpiresAt:   in.ExpiresAt,
	}, nil
}
