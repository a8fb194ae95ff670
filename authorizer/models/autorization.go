package models

import (
    "time"

    "github.com/shopspring/decimal"
)

type AuthorizationRequest struct {
    CardNumber string          `json:"numeroCartao"`
    Password   string          `json:"senhaCartao"`
    Amount     decimal.Decimal `json:"valor"`
}

// Transaction is the record of an authorized debit.
type Transaction struct {
    ID         string          `json:"id"`
    CardID     string          `json:"-"`
    CardNumber string          `json:"numeroCartao"`
    Amount     decimal.Decimal `json:"valor"`
    CreatedAt  time.Time       `json:"dataHora"`
}

// TransactionAuthorized is emitted after a debit has been committed.
type TransactionAuthorized struct {
    TransactionID string          `json:"transaction_id"`
    CardNumber    string          `json:"card_number"`
    Amount        decimal.Decimal `json:"amount"`
    Balance       decimal.Decimal `json:"balance"`
    OccurredAt    time.Time       `json:"occurred_at"`
}
