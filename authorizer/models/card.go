package models

import (
    "time"

    "github.com/shopspring/decimal"
)

// InitialBalance is the balance every newly issued card starts with.
var InitialBalance = decimal.RequireFromString("500.00")

func init() {
    // amounts travel as JSON numbers, not strings
    decimal.MarshalJSONWithoutQuotes = true
}

type Card struct {
    ID       string
    Number   string
    Password string
    Balance  decimal.Decimal
    // Version is bumped by the store on every successful balance update and
    // used as the compare-and-swap token for concurrent debits.
    Version   int64
    CreatedAt time.Time
    UpdatedAt time.Time
}

// CardCredentials is both the issuance request and response body.
type CardCredentials struct {
    Number   string `json:"numeroCartao"`
    Password string `json:"senha"`
}

func (c *Card) Credentials() CardCredentials {
    return CardCredentials{Number: c.Number, Password: c.Password}
}
