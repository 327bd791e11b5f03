package models

// Account is an opaque account identity. Producers, publishers, purchasers,
// the admin and the fee destination are all Accounts. The empty string is the
// absent value and never names a real principal.
type Account string

func (a Account) Valid() bool {
	return a != ""
}

type ProductType string

const (
	ProductTypeDigital       ProductType = "digital"
	ProductTypePrintOnDemand ProductType = "print_on_demand"
	ProductTypePhysical      ProductType = "physical"
)

func (t ProductType) Valid() bool {
	switch t {
	case ProductTypeDigital, ProductTypePrintOnDemand, ProductTypePhysical:
		return true
	}
	return false
}

// Product holds the catalog attributes of a listing. Products are immutable
// after creation; there is no update operation. The id is assigned by the
// asset registry when the initial supply is minted.
type Product struct {
	ID          int64       `json:"id"`
	Producer    Account     `json:"producer"`
	Price       int64       `json:"price"`
	Commission  int64       `json:"commission"`
	Type        ProductType `json:"type"`
	Destination Account     `json:"destination"`
}

// ProductMetadata is the create-time input for a listing. URI, Amount and
// Recipient feed the mint leg; the remaining fields become catalog state.
type ProductMetadata struct {
	URI         string      `json:"uri"`
	Price       int64       `json:"price"`
	Amount      int64       `json:"amount"`
	Commission  int64       `json:"commission"`
	Type        ProductType `json:"type"`
	Recipient   Account     `json:"recipient"`
	Destination Account     `json:"destination"`
}

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
)

// Request is an affiliate request by a publisher against a product. Status
// only ever moves pending -> accepted; rejection deletes the record instead
// of introducing a third status.
type Request struct {
	ID        int64         `json:"id"`
	ProductID int64         `json:"product_id"`
	Publisher Account       `json:"publisher"`
	Status    RequestStatus `json:"status"`
}

// CartItem is one purchase line. ReferenceID is a request id when Affiliate
// is set and a product id otherwise. Cart items are never persisted.
type CartItem struct {
	ReferenceID int64 `json:"reference_id"`
	Affiliate   bool  `json:"affiliate"`
	Amount      int64 `json:"amount"`
}

// Asset is the registry record written when a product's supply is minted.
type Asset struct {
	ProductID int64  `json:"product_id"`
	URI       string `json:"uri"`
	Supply    int64  `json:"supply"`
}
