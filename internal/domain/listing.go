package domain

import "github.com/abhishek-Rj/Topprix-sub001/pkg/pagination"

// Resource identifies a backend listing endpoint.
type Resource string

const (
	ResourceFlyers         Resource = "flyers"
	ResourceCoupons        Resource = "coupons"
	ResourceStores         Resource = "stores"
	ResourceAntiWasteItems Resource = "anti-waste-items"
)

// Path is the backend path of the listing endpoint.
func (r Resource) Path() string {
	return "/" + string(r)
}

// ItemsKey is the body key the backend puts results under.
func (r Resource) ItemsKey() string {
	if r == ResourceAntiWasteItems {
		return "items"
	}
	return string(r)
}

// StoreScoped reports whether the resource can be filtered by storeId and
// therefore merged across a retailer's stores.
func (r Resource) StoreScoped() bool {
	return r == ResourceFlyers || r == ResourceCoupons || r == ResourceAntiWasteItems
}

// Item is one listing element. The BFF treats items as opaque apart from the
// category display fields it adds.
type Item = map[string]any

// ListPage is one normalized page of a listing endpoint.
type ListPage struct {
	Items      []Item              `json:"items"`
	Pagination pagination.Envelope `json:"pagination"`
}

// Store is a retailer's shop.
type Store struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	OwnerID   string   `json:"ownerId"`
	Logo      string   `json:"logo,omitempty"`
	Address   string   `json:"address,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// StoreIDs returns the ids of stores in order.
func StoreIDs(stores []Store) []string {
	ids := make([]string, len(stores))
	for i, s := range stores {
		ids[i] = s.ID
	}
	return ids
}
