package gateway

import "context"

// ChargeRequest asks a gateway to take Amount in minor units of Currency
type ChargeRequest struct {
	PaymentID   string
	UserID      string
	Amount      int64
	Currency    string
	Description string
	Metadata    map[string]string
}

// ChargeResponse is the outcome of a charge. A declined charge is not an
// error; Success is false and FailureReason says why.
type ChargeResponse struct {
	Success       bool
	TransactionID string
	Status        string
	FailureReason string
	FailureCode   string
}

// PaymentGateway is an external payment provider
type PaymentGateway interface {
	Charge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error)
	Refund(ctx context.Context, transactionID string, amount int64) error
	Name() string
}
