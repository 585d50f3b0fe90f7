package auth

import (
	"github.com/frahmantamala/storefront/internal/core/common/validation"
)

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Password string `json:"password"`
}

// Validate rejects empty passwords and anything bcrypt would truncate.
func (d LoginDTO) Validate() error {
	validator := validation.NewValidator()
	validator.Field("password", d.Password).Required().MaxLength(72)
	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}
