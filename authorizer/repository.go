package authorizer

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "sync"

    "github.com/alovak/mini-authorizer/authorizer/models"
    "github.com/jackc/pgconn"
    "github.com/lib/pq"
)

var ErrNotFound = fmt.Errorf("not found")

// ErrConflict is returned when a card number is already taken on insert, or
// when the stored version moved under an update.
var ErrConflict = fmt.Errorf("conflict")

// Repository is the card store. Without a db it keeps everything in memory.
type Repository struct {
    mu           sync.RWMutex
    cards        map[string]*models.Card
    transactions map[string][]*models.Transaction

    db *sql.DB
}

func NewRepository() *Repository {
    return &Repository{
        cards:        make(map[string]*models.Card),
        transactions: make(map[string][]*models.Transaction),
    }
}

// NewPGRepository constructs a db-backed repository.
func NewPGRepository(db *sql.DB) *Repository {
    return &Repository{db: db}
}

// FindCard returns a copy of the card stored under number.
func (r *Repository) FindCard(ctx context.Context, number string) (*models.Card, error) {
    if r.db == nil {
        r.mu.RLock()
        defer r.mu.RUnlock()
        c, ok := r.cards[number]
        if !ok {
            return nil, ErrNotFound
        }
        cp := *c
        return &cp, nil
    }
    row := r.db.QueryRowContext(ctx, `
        SELECT card_id, card_number, password, balance, version, created_at, updated_at
          FROM authorizer.cards WHERE card_number=$1
    `, number)
    var c models.Card
    if err := row.Scan(&c.ID, &c.Number, &c.Password, &c.Balance, &c.Version, &c.CreatedAt, &c.UpdatedAt); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrNotFound
        }
        return nil, err
    }
    return &c, nil
}

func (r *Repository) CreateCard(ctx context.Context, card *models.Card) error {
    if r.db == nil {
        r.mu.Lock()
        defer r.mu.Unlock()
        if _, ok := r.cards[card.Number]; ok {
            return fmt.Errorf("card number exists: %w", ErrConflict)
        }
        cp := *card
        r.cards[card.Number] = &cp
        return nil
    }
    _, err := r.db.ExecContext(ctx, `
        INSERT INTO authorizer.cards(card_id, card_number, password, balance, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
    `, card.ID, card.Number, card.Password, card.Balance, card.Version, card.CreatedAt, card.UpdatedAt)
    if isUniqueViolation(err) {
        return fmt.Errorf("card number exists: %w", ErrConflict)
    }
    return err
}

// UpdateBalance stores card.Balance if the stored version still equals
// card.Version, and records txn in the same unit of work. On success
// card.Version holds the new version.
func (r *Repository) UpdateBalance(ctx context.Context, card *models.Card, txn *models.Transaction) error {
    if card.Balance.IsNegative() {
        return fmt.Errorf("negative balance for card %s", card.ID)
    }
    if r.db == nil {
        r.mu.Lock()
        defer r.mu.Unlock()
        stored, ok := r.cards[card.Number]
        if !ok {
            return ErrNotFound
        }
        if stored.Version != card.Version {
            return ErrConflict
        }
        stored.Balance = card.Balance
        stored.Version++
        stored.UpdatedAt = txn.CreatedAt
        card.Version = stored.Version
        cp := *txn
        r.transactions[card.Number] = append(r.transactions[card.Number], &cp)
        return nil
    }

    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer tx.Rollback()
    // set per-transaction statement timeout to avoid long hangs
    if _, err := tx.ExecContext(ctx, `set local statement_timeout = '3s'`); err != nil {
        return err
    }

    res, err := tx.ExecContext(ctx, `
        UPDATE authorizer.cards
           SET balance    = $3,
               version    = version + 1,
               updated_at = now()
         WHERE card_number=$1 AND version=$2
    `, card.Number, card.Version, card.Balance)
    if err != nil {
        return err
    }
    if rows, _ := res.RowsAffected(); rows == 0 {
        return ErrConflict
    }
    if _, err := tx.ExecContext(ctx, `
        INSERT INTO authorizer.transactions(tx_id, card_id, card_number, amount, created_at)
        VALUES ($1,$2,$3,$4,$5)
    `, txn.ID, card.ID, txn.CardNumber, txn.Amount, txn.CreatedAt); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    card.Version++
    return nil
}

// ListTransactions returns the authorized debits of a card, newest first.
func (r *Repository) ListTransactions(ctx context.Context, number string) ([]*models.Transaction, error) {
    if r.db == nil {
        r.mu.RLock()
        defer r.mu.RUnlock()
        list := r.transactions[number]
        out := make([]*models.Transaction, 0, len(list))
        for i := len(list) - 1; i >= 0; i-- {
            cp := *list[i]
            out = append(out, &cp)
        }
        return out, nil
    }
    rows, err := r.db.QueryContext(ctx, `
        SELECT tx_id, card_id, card_number, amount, created_at
          FROM authorizer.transactions WHERE card_number=$1 ORDER BY created_at DESC
    `, number)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []*models.Transaction{}
    for rows.Next() {
        var t models.Transaction
        if err := rows.Scan(&t.ID, &t.CardID, &t.CardNumber, &t.Amount, &t.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, &t)
    }
    return out, rows.Err()
}

// Ping returns DB readiness
func (r *Repository) Ping(ctx context.Context) error {
    if r.db == nil {
        return nil
    }
    return r.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
    var pe *pq.Error
    if errors.As(err, &pe) && pe.Code == "23505" {
        return true
    }
    var pgerr *pgconn.PgError
    if errors.As(err, &pgerr) && pgerr.Code == "23505" {
        return true
    }
    return false
}
