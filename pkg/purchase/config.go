package purchase

import "strings"

// Config holds controller settings loaded from the environment.
type Config struct {
	UserID              string `env:"IAP_USER_ID"`
	IsDebug             bool   `env:"IAP_DEBUG" envDefault:"false"`
	OSName              string `env:"IAP_OS_NAME" envDefault:"android"`
	PurchaseAPIEndpoint string `env:"IAP_PURCHASE_API_ENDPOINT"`
	PlayPassProductID   string `env:"IAP_PLAY_PASS_PRODUCT_ID"`
}

// Validate implements config.Validator.
func (c Config) Validate() error {
	if strings.TrimSpace(c.PurchaseAPIEndpoint) == "" {
		return ErrMissingEndpoint
	}
	return nil
}
