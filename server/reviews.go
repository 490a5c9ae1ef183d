package server

import (
	"net/http"
	"sort"
	"time"

	"github.com/apporbit/apporbit/api"
	"github.com/apporbit/apporbit/errors"
	"github.com/apporbit/apporbit/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) handleAddReview(r *http.Request) (any, error) {
	user, err := s.currentUser(r)
	if err != nil {
		return nil, err
	}

	var in api.ReviewInput
	if err := decode(r, &in); err != nil {
		return nil, err
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, errors.Codef(http.StatusBadRequest, "rating %d out of range", in.Rating).
			WithPublicMessage("Rating must be between 1 and 5")
	}
	if ok, err := s.store.Exists(in.ProductID, &api.Product{}); err != nil {
		return nil, err
	} else if !ok {
		return nil, errors.Mark(storage.ErrNotFound, 0).Append("product " + in.ProductID)
	}

	review := api.Review{
		ID:            uuid.NewString(),
		ProductID:     in.ProductID,
		ReviewerEmail: user.Email,
		ReviewerName:  user.Name,
		ReviewerPhoto: user.Photo,
		Rating:        in.Rating,
		Description:   in.Description,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.Create(&review); err != nil {
		return nil, err
	}
	return review, nil
}

func (s *Server) handleProductReviews(r *http.Request) (any, error) {
	var reviews []api.Review
	filter := api.Review{ProductID: chi.URLParam(r, "id")}
	if err := s.store.List(&reviews, filter); err != nil {
		return nil, err
	}
	sort.Slice(reviews, func(i, j int) bool {
		return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
	})
	return reviews, nil
}
