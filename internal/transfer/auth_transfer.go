package transfer

import "github.com/golang-jwt/jwt/v5"

// OperatorClaims identify whoever manages the post schedule.
type OperatorClaims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}
