package billing

import "strconv"

// ResponseCode mirrors the platform billing response codes.
type ResponseCode int

const (
	ResponseServiceTimeout      ResponseCode = -3
	ResponseFeatureNotSupported ResponseCode = -2
	ResponseServiceDisconnected ResponseCode = -1
	ResponseOK                  ResponseCode = 0
	ResponseUserCanceled        ResponseCode = 1
	ResponseServiceUnavailable  ResponseCode = 2
	ResponseBillingUnavailable  ResponseCode = 3
	ResponseItemUnavailable     ResponseCode = 4
	ResponseDeveloperError      ResponseCode = 5
	ResponseError               ResponseCode = 6
	ResponseItemAlreadyOwned    ResponseCode = 7
	ResponseItemNotOwned        ResponseCode = 8
)

func (c ResponseCode) String() string {
	switch c {
	case ResponseServiceTimeout:
		return "service_timeout"
	case ResponseFeatureNotSupported:
		return "feature_not_supported"
	case ResponseServiceDisconnected:
		return "service_disconnected"
	case ResponseOK:
		return "ok"
	case ResponseUserCanceled:
		return "user_canceled"
	case ResponseServiceUnavailable:
		return "service_unavailable"
	case ResponseBillingUnavailable:
		return "billing_unavailable"
	case ResponseItemUnavailable:
		return "item_unavailable"
	case ResponseDeveloperError:
		return "developer_error"
	case ResponseError:
		return "error"
	case ResponseItemAlreadyOwned:
		return "item_already_owned"
	case ResponseItemNotOwned:
		return "item_not_owned"
	default:
		return "code_" + strconv.Itoa(int(c))
	}
}

// Product is a store catalog entry as reported by the platform.
type Product struct {
	ID           string  `json:"id"`
	Title        string  `json:"title,omitempty"`
	Description  string  `json:"description,omitempty"`
	Price        string  `json:"price,omitempty"`
	PriceValue   float64 `json:"priceValue,omitempty"`
	CurrencyCode string  `json:"currencyCode,omitempty"`
}

// PurchaseProduct is a product the user paid for, with the proof the grant
// server needs to verify it.
type PurchaseProduct struct {
	Product
	TransactionID          string `json:"transactionID"`
	Receipt                string `json:"receipt,omitempty"`
	ReceiptCipheredPayload string `json:"receiptCipheredPayload,omitempty"`
	PurchaseToken          string `json:"purchaseToken"`
}

// Purchase is an owned purchase as returned by Backend.Products.
type Purchase struct {
	Token string `json:"token"`
	ID    string `json:"id"`
}
