package models

import (
    "errors"
)

// Authorization failures. The message of each error is the token returned
// to API callers.
var (
    ErrCardNotFound        = errors.New("CARTAO_INEXISTENTE")
    ErrInvalidPassword     = errors.New("SENHA_INVALIDA")
    ErrInsufficientBalance = errors.New("SALDO_INSUFICIENTE")
    ErrInvalidAmount       = errors.New("VALOR_INVALIDO")
)

var (
    ErrCardExists       = errors.New("card already exists")
    ErrInvalidRequest   = errors.New("invalid request")
    ErrConcurrentUpdate = errors.New("card updated concurrently, retries exhausted")
)

// CardExistsError is returned by issuance when the number is taken. It
// carries the public fields of the card already stored.
type CardExistsError struct {
    Existing CardCredentials
}

func (e *CardExistsError) Error() string {
    return ErrCardExists.Error() + ": " + e.Existing.Number
}

func (e *CardExistsError) Is(target error) bool {
    return target == ErrCardExists
}

// Token returns the wire token for an authorization failure, or "" if err is
// not one of them.
func Token(err error) string {
    for _, known := range []error{ErrCardNotFound, ErrInvalidPassword, ErrInsufficientBalance, ErrInvalidAmount} {
        if errors.Is(err, known) {
            return known.Error()
        }
    }
    return ""
}

// FromToken maps a wire token back to its error, or nil if unknown.
func FromToken(token string) error {
    for _, known := range []error{ErrCardNotFound, ErrInvalidPassword, ErrInsufficientBalance, ErrInvalidAmount} {
        if known.Error() == token {
            return known
        }
    }
    return nil
}
