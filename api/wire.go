package api

import "time"

// TokenRequest is the payload for POST /api/auth/jwt. The token field
// carries the identity provider's ID token; the profile fields let the
// backend upsert the user record in the same round trip.
type TokenRequest struct {
	Token string `json:"token"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Photo string `json:"photo"`
	UID   string `json:"uid"`
}

// TokenResponse returns the app's own bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// VerifyResponse is the payload of GET /api/auth/verify: the refreshed user
// record for a still-valid token.
type VerifyResponse struct {
	User User `json:"user"`
}

// ProductInput carries the owner-editable fields of a product, used both to
// submit and to update one. Ownership, status, and votes are server-managed.
type ProductInput struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Image        string   `json:"image"`
	ExternalLink string   `json:"externalLink"`
	Tags         []string `json:"tags"`
}

// ReviewInput is the payload for submitting a review. Reviewer identity
// comes from the bearer token, not the body.
type ReviewInput struct {
	ProductID   string `json:"productId"`
	Rating      int    `json:"rating"`
	Description string `json:"description"`
}

// CouponInput carries the admin-editable fields of a coupon.
type CouponInput struct {
	Code        string    `json:"code"`
	Discount    int       `json:"discount"`
	Description string    `json:"description"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// ProductPage is one page of product listings.
type ProductPage struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
}

// RoleResponse is the payload of GET /users/role/{email}.
type RoleResponse struct {
	Role Role `json:"role"`
}

// UpvoteResponse reports the new vote count after an upvote.
type UpvoteResponse struct {
	Upvotes int `json:"upvotes"`
}

// PaymentIntentRequest asks the backend to start a membership payment.
type PaymentIntentRequest struct {
	Email  string `json:"email"`
	Amount int    `json:"amount"` // Cents.
}

// PaymentIntentResponse carries the opaque intent id the client confirms
// later.
type PaymentIntentResponse struct {
	IntentID string `json:"intentId"`
}

// ConfirmPaymentRequest completes a payment started with
// PaymentIntentRequest.
type ConfirmPaymentRequest struct {
	IntentID string `json:"intentId"`
}

// StatsResponse is the payload of GET /admin/stats.
type StatsResponse struct {
	Products         int `json:"products"`
	AcceptedProducts int `json:"acceptedProducts"`
	Reviews          int `json:"reviews"`
	Users            int `json:"users"`
}

// ErrorResponse is the body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}
