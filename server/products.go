package server

import (
	"net/http"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/apporbit/apporbit/api"
	"github.com/apporbit/apporbit/errors"
	"github.com/apporbit/apporbit/logging"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 12
	maxPageSize     = 50
	featuredLimit   = 4
	trendingLimit   = 6
)

// handleListProducts returns a page of accepted products, newest first,
// optionally filtered by a search term matched against name and tags.
func (s *Server) handleListProducts(r *http.Request) (any, error) {
	var products []api.Product
	if err := s.store.List(&products, api.Product{Status: api.StatusAccepted}); err != nil {
		return nil, err
	}

	if search := strings.ToLower(r.URL.Query().Get("search")); search != "" {
		products = slices.DeleteFunc(products, func(p api.Product) bool {
			if strings.Contains(strings.ToLower(p.Name), search) {
				return false
			}
			for _, tag := range p.Tags {
				if strings.Contains(strings.ToLower(tag), search) {
					return false
				}
			}
			return true
		})
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})

	total := len(products)
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return api.ProductPage{Products: products[start:end], Total: total}, nil
}

func (s *Server) handleFeaturedProducts(r *http.Request) (any, error) {
	var products []api.Product
	filter := api.Product{Status: api.StatusAccepted, Featured: true}
	if err := s.store.List(&products, filter); err != nil {
		return nil, err
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return truncate(products, featuredLimit), nil
}

// handleTrendingProducts returns the most upvoted accepted products.
func (s *Server) handleTrendingProducts(r *http.Request) (any, error) {
	var products []api.Product
	if err := s.store.List(&products, api.Product{Status: api.StatusAccepted}); err != nil {
		return nil, err
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].Upvotes() > products[j].Upvotes()
	})
	return truncate(products, trendingLimit), nil
}

func (s *Server) handleGetProduct(r *http.Request) (any, error) {
	var product api.Product
	if err := s.store.Read(chi.URLParam(r, "id"), &product); err != nil {
		return nil, err
	}
	return product, nil
}

// handleAddProduct submits a product into the moderator review queue.
// Non-members may have a single submission; membership lifts the cap.
func (s *Server) handleAddProduct(r *http.Request) (any, error) {
	user, err := s.currentUser(r)
	if err != nil {
		return nil, err
	}

	var in api.ProductInput
	if err := decode(r, &in); err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, errors.Codef(http.StatusBadRequest, "product name required").
			WithPublicMessage("Product name is required")
	}

	if !user.Member {
		var mine []api.Product
		if err := s.store.List(&mine, api.Product{OwnerEmail: user.Email}); err != nil {
			return nil, err
		}
		if len(mine) >= 1 {
			return nil, errors.Codef(http.StatusForbidden, "submission cap reached for %s", user.Email).
				WithPublicMessage("Free accounts can submit one product. Become a member to add more.")
		}
	}

	product := api.Product{
		ID:           uuid.NewString(),
		OwnerEmail:   user.Email,
		OwnerName:    user.Name,
		Name:         in.Name,
		Description:  in.Description,
		Image:        in.Image,
		ExternalLink: in.ExternalLink,
		Tags:         in.Tags,
		Status:       api.StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Create(&product); err != nil {
		return nil, err
	}
	logging.Infow(r.Context(), "product submitted", "product_id", product.ID, "owner", user.Email)
	return product, nil
}

func (s *Server) handleMyProducts(r *http.Request) (any, error) {
	email := chi.URLParam(r, "email")
	id, _ := IdentityFromContext(r.Context())
	if id.Email != email {
		return nil, errors.Mark(ErrPermissionDenied, 0).Append("products belong to another user")
	}

	var products []api.Product
	if err := s.store.List(&products, api.Product{OwnerEmail: email}); err != nil {
		return nil, err
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return products, nil
}

// handleUpdateProduct lets the owner edit the listed fields. Status, votes,
// and moderation flags are untouched.
func (s *Server) handleUpdateProduct(r *http.Request) (any, error) {
	product, err := s.ownedProduct(r)
	if err != nil {
		return nil, err
	}

	var in api.ProductInput
	if err := decode(r, &in); err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, errors.Codef(http.StatusBadRequest, "product name required").
			WithPublicMessage("Product name is required")
	}
	product.Name = in.Name
	product.Description = in.Description
	product.Image = in.Image
	product.ExternalLink = in.ExternalLink
	product.Tags = in.Tags
	if err := s.store.Update(&product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *Server) handleDeleteProduct(r *http.Request) (any, error) {
	product, err := s.ownedProduct(r)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(&product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *Server) handleAdminDeleteProduct(r *http.Request) (any, error) {
	var product api.Product
	if err := s.store.Read(chi.URLParam(r, "id"), &product); err != nil {
		return nil, err
	}
	if err := s.store.Delete(&product); err != nil {
		return nil, err
	}
	logging.Infow(r.Context(), "product removed by admin", "product_id", product.ID)
	return product, nil
}

// handleUpvote records one vote per user. Owners cannot vote for their own
// product, and a second vote conflicts instead of toggling.
func (s *Server) handleUpvote(r *http.Request) (any, error) {
	id, _ := IdentityFromContext(r.Context())

	var product api.Product
	if err := s.store.Read(chi.URLParam(r, "id"), &product); err != nil {
		return nil, err
	}
	if product.OwnerEmail == id.Email {
		return nil, errors.Codef(http.StatusForbidden, "own product").
			WithPublicMessage("You cannot upvote your own product")
	}
	if slices.Contains(product.Upvoters, id.Email) {
		return nil, errors.Codef(http.StatusConflict, "duplicate vote").
			WithPublicMessage("You have already upvoted this product")
	}
	product.Upvoters = append(product.Upvoters, id.Email)
	if err := s.store.Update(&product); err != nil {
		return nil, err
	}
	return api.UpvoteResponse{Upvotes: product.Upvotes()}, nil
}

// handleReport flags a product for moderator attention. Reporting twice is a
// no-op rather than an error.
func (s *Server) handleReport(r *http.Request) (any, error) {
	id, _ := IdentityFromContext(r.Context())

	var product api.Product
	if err := s.store.Read(chi.URLParam(r, "id"), &product); err != nil {
		return nil, err
	}
	if !product.Reported {
		product.Reported = true
		if err := s.store.Update(&product); err != nil {
			return nil, err
		}
		s.publish(TopicProductReported, ProductReported{
			ProductID:     product.ID,
			ReporterEmail: id.Email,
		})
	}
	return product, nil
}

func (s *Server) handleReviewQueue(r *http.Request) (any, error) {
	var products []api.Product
	if err := s.store.List(&products, api.Product{Status: api.StatusPending}); err != nil {
		return nil, err
	}
	// Oldest first, so the queue is worked in submission order.
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.Before(products[j].CreatedAt)
	})
	return products, nil
}

func (s *Server) handleReportedProducts(r *http.Request) (any, error) {
	var products []api.Product
	if err := s.store.List(&products, api.Product{Reported: true}); err != nil {
		return nil, err
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.Before(products[j].CreatedAt)
	})
	return products, nil
}

// handleSetStatus resolves a review-queue item: PATCH /products/{id}/accept
// or /products/{id}/reject.
func (s *Server) handleSetStatus(r *http.Request) (any, error) {
	var status string
	switch verdict := chi.URLParam(r, "status"); verdict {
	case "accept":
		status = api.StatusAccepted
	case "reject":
		status = api.StatusRejected
	default:
		return nil, errors.Codef(http.StatusBadRequest, "unknown status %q", verdict).
			WithPublicMessage("Unknown review status")
	}

	var product api.Product
	if err := s.store.Read(chi.URLParam(r, "id"), &product); err != nil {
		return nil, err
	}
	product.Status = status
	if err := s.store.Update(&product); err != nil {
		return nil, err
	}
	logging.Infow(r.Context(), "product reviewed", "product_id", product.ID, "status", status)
	return product, nil
}

func (s *Server) handleMarkFeatured(r *http.Request) (any, error) {
	var product api.Product
	if err := s.store.Read(chi.URLParam(r, "id"), &product); err != nil {
		return nil, err
	}
	product.Featured = true
	if err := s.store.Update(&product); err != nil {
		return nil, err
	}
	return product, nil
}

// ownedProduct loads the product in the URL and checks the caller owns it.
func (s *Server) ownedProduct(r *http.Request) (api.Product, error) {
	id, _ := IdentityFromContext(r.Context())

	var product api.Product
	if err := s.store.Read(chi.URLParam(r, "id"), &product); err != nil {
		return api.Product{}, err
	}
	if product.OwnerEmail != id.Email {
		return api.Product{}, errors.Mark(ErrPermissionDenied, 0).Append("product belongs to another user")
	}
	return product, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func truncate(products []api.Product, n int) []api.Product {
	if len(products) > n {
		return products[:n]
	}
	return products
}
