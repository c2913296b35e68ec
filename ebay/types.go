package ebay

import "time"

// Listing is one immutable marketplace result. Prices are integer minor
// units (pence) so price-ceiling comparisons are exact.
type Listing struct {
	ItemID        string     `json:"itemId"`
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	ImageURL      string     `json:"imageUrl,omitempty"`
	Currency      string     `json:"currency"`
	Price         int64      `json:"price"`
	Shipping      int64      `json:"shipping"`
	Total         int64      `json:"total"`
	EndTime       *time.Time `json:"endTime,omitempty"`
	Seller        string     `json:"seller,omitempty"`
	BuyingOptions []string   `json:"buyingOptions"`
}

func (l *Listing) hasOption(option string) bool {
	for _, o := range l.BuyingOptions {
		if o == option {
			return true
		}
	}
	return false
}

func (l *Listing) IsAuction() bool {
	return l.hasOption("AUCTION")
}

func (l *Listing) IsFixedPrice() bool {
	return l.hasOption("FIXED_PRICE")
}
