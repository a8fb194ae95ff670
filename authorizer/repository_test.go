package authorizer

import (
    "context"
    "testing"
    "time"

    "github.com/alovak/mini-authorizer/authorizer/models"
    "github.com/google/uuid"
    "github.com/stretchr/testify/require"
)

func newCard(number string) *models.Card {
    now := time.Now().UTC()
    return &models.Card{
        ID:        uuid.New().String(),
        Number:    number,
        Password:  "pw",
        Balance:   models.InitialBalance,
        CreatedAt: now,
        UpdatedAt: now,
    }
}

func newTransaction(card *models.Card, value string) *models.Transaction {
    return &models.Transaction{
        ID:         uuid.New().String(),
        CardID:     card.ID,
        CardNumber: card.Number,
        Amount:     amount(value),
        CreatedAt:  time.Now().UTC(),
    }
}

func TestRepository_CreateAndFind(t *testing.T) {
    ctx := context.Background()
    repo := NewRepository()

    _, err := repo.FindCard(ctx, "111")
    require.ErrorIs(t, err, ErrNotFound)

    card := newCard("111")
    require.NoError(t, repo.CreateCard(ctx, card))
    require.ErrorIs(t, repo.CreateCard(ctx, newCard("111")), ErrConflict)

    found, err := repo.FindCard(ctx, "111")
    require.NoError(t, err)
    require.Equal(t, card.ID, found.ID)
    require.True(t, models.InitialBalance.Equal(found.Balance))

    // returned cards are copies
    found.Balance = amount("1")
    again, err := repo.FindCard(ctx, "111")
    require.NoError(t, err)
    require.True(t, models.InitialBalance.Equal(again.Balance))
}

func TestRepository_UpdateBalanceChecksVersion(t *testing.T) {
    ctx := context.Background()
    repo := NewRepository()
    require.NoError(t, repo.CreateCard(ctx, newCard("111")))

    first, err := repo.FindCard(ctx, "111")
    require.NoError(t, err)
    second, err := repo.FindCard(ctx, "111")
    require.NoError(t, err)

    first.Balance = first.Balance.Sub(amount("100"))
    require.NoError(t, repo.UpdateBalance(ctx, first, newTransaction(first, "100")))
    require.Equal(t, int64(1), first.Version)

    // stale version loses
    second.Balance = second.Balance.Sub(amount("50"))
    require.ErrorIs(t, repo.UpdateBalance(ctx, second, newTransaction(second, "50")), ErrConflict)

    stored, err := repo.FindCard(ctx, "111")
    require.NoError(t, err)
    require.Equal(t, "400.00", stored.Balance.StringFixed(2))
    require.Equal(t, int64(1), stored.Version)

    transactions, err := repo.ListTransactions(ctx, "111")
    require.NoError(t, err)
    require.Len(t, transactions, 1)
    require.Equal(t, "100.00", transactions[0].Amount.StringFixed(2))
}

func TestRepository_UpdateBalanceRejectsNegative(t *testing.T) {
    ctx := context.Background()
    repo := NewRepository()
    card := newCard("111")
    require.NoError(t, repo.CreateCard(ctx, card))

    card.Balance = amount("-0.01")
    require.Error(t, repo.UpdateBalance(ctx, card, newTransaction(card, "500.01")))

    stored, err := repo.FindCard(ctx, "111")
    require.NoError(t, err)
    require.True(t, models.InitialBalance.Equal(stored.Balance))
}

func TestRepository_ListTransactionsNewestFirst(t *testing.T) {
    ctx := context.Background()
    repo := NewRepository()
    require.NoError(t, repo.CreateCard(ctx, newCard("111")))

    for _, v := range []string{"1", "2", "3"} {
        card, err := repo.FindCard(ctx, "111")
        require.NoError(t, err)
        card.Balance = card.Balance.Sub(amount(v))
        require.NoError(t, repo.UpdateBalance(ctx, card, newTransaction(card, v)))
    }

    transactions, err := repo.ListTransactions(ctx, "111")
    require.NoError(t, err)
    require.Len(t, transactions, 3)
    require.Equal(t, "3.00", transactions[0].Amount.StringFixed(2))
    require.Equal(t, "1.00", transactions[2].Amount.StringFixed(2))

    empty, err := repo.ListTransactions(ctx, "222")
    require.NoError(t, err)
    require.Empty(t, empty)
}
