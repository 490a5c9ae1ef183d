package server

import (
	"net/http"

	"github.com/apporbit/apporbit/api"
)

// handleStats derives dashboard counts by scanning the stores; fine at the
// scale of a curated product directory.
func (s *Server) handleStats(r *http.Request) (any, error) {
	var products []api.Product
	if err := s.store.List(&products, api.Product{}); err != nil {
		return nil, err
	}
	accepted := 0
	for _, p := range products {
		if p.Status == api.StatusAccepted {
			accepted++
		}
	}

	var reviews []api.Review
	if err := s.store.List(&reviews, api.Review{}); err != nil {
		return nil, err
	}
	var users []api.User
	if err := s.store.List(&users, api.User{}); err != nil {
		return nil, err
	}

	return api.StatsResponse{
		Products:         len(products),
		AcceptedProducts: accepted,
		Reviews:          len(reviews),
		Users:            len(users),
	}, nil
}
