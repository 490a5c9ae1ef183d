package api

import "time"

// Product review states. New submissions wait in the moderator review queue
// until accepted or rejected; only accepted products are publicly listable.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// User is a registered account. Users are keyed by email, matching the
// identity the provider asserts.
type User struct {
	Email     string    `json:"email"`
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	Photo     string    `json:"photo"`
	Role      Role      `json:"role"`
	Member    bool      `json:"member"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u User) PK() string {
	return u.Email
}

// Product is a submitted product. Upvoters holds the emails of users who
// have voted, one vote each.
type Product struct {
	ID           string    `json:"id"`
	OwnerEmail   string    `json:"ownerEmail"`
	OwnerName    string    `json:"ownerName"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Image        string    `json:"image"`
	ExternalLink string    `json:"externalLink"`
	Tags         []string  `json:"tags"`
	Status       string    `json:"status"`
	Featured     bool      `json:"featured"`
	Reported     bool      `json:"reported"`
	Upvoters     []string  `json:"upvoters"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (p Product) PK() string {
	return p.ID
}

// Upvotes returns the vote count.
func (p Product) Upvotes() int {
	return len(p.Upvoters)
}

// Review is user feedback on a product.
type Review struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"productId"`
	ReviewerEmail string    `json:"reviewerEmail"`
	ReviewerName  string    `json:"reviewerName"`
	ReviewerPhoto string    `json:"reviewerPhoto"`
	Rating        int       `json:"rating"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (r Review) PK() string {
	return r.ID
}

// Coupon is an admin-managed discount code for membership payments.
type Coupon struct {
	Code        string    `json:"code"`
	Discount    int       `json:"discount"` // Percent off.
	Description string    `json:"description"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (c Coupon) PK() string {
	return c.Code
}

// Expired reports whether the coupon is past its expiry.
func (c Coupon) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Payment tracks a membership payment intent through confirmation.
type Payment struct {
	IntentID  string    `json:"intentId"`
	Email     string    `json:"email"`
	Amount    int       `json:"amount"` // Cents.
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p Payment) PK() string {
	return p.IntentID
}
