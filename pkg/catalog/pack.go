package catalog

// Pack is a purchasable item together with its store price.
type Pack struct {
	PackID     string  `json:"packID" yaml:"packID"`
	ItemType   string  `json:"itemType" yaml:"itemType"`
	ItemValue  float64 `json:"itemValue" yaml:"itemValue"`
	ItemName   string  `json:"itemName" yaml:"itemName"`
	Asset      string  `json:"asset" yaml:"asset"`
	Tag        string  `json:"tag" yaml:"tag"`
	InStoreRaw string  `json:"inStoreRaw" yaml:"inStoreRaw"`
	InStore    bool    `json:"inStore" yaml:"inStore"`
	Price      string  `json:"price" yaml:"price"`
	PriceValue float64 `json:"priceValue" yaml:"priceValue"`
}

// synthetic builds a pack for a store product that has no static metadata.
func synthetic(id, price string, priceValue float64) Pack {
	return Pack{
		PackID:     id,
		Price:      price,
		PriceValue: priceValue,
	}
}
