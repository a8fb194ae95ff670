package authorizer

import (
    "context"
    "crypto/subtle"
    "errors"
    "fmt"
    "time"

    "github.com/alovak/mini-authorizer/authorizer/models"
    "github.com/alovak/mini-authorizer/internal/pan"
    "github.com/google/uuid"
    "github.com/shopspring/decimal"
    "golang.org/x/exp/slog"
)

// Publisher delivers domain events outside the service.
type Publisher interface {
    Publish(ctx context.Context, key string, event any) error
}

type cardStore interface {
    FindCard(ctx context.Context, number string) (*models.Card, error)
    CreateCard(ctx context.Context, card *models.Card) error
    UpdateBalance(ctx context.Context, card *models.Card, txn *models.Transaction) error
    ListTransactions(ctx context.Context, number string) ([]*models.Transaction, error)
}

type Service struct {
    repo      cardStore
    cfg       *Config
    logger    *slog.Logger
    publisher Publisher
    metrics   *Metrics
    now       func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
    return func(s *Service) { s.logger = logger }
}

func WithPublisher(p Publisher) Option {
    return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *Metrics) Option {
    return func(s *Service) { s.metrics = m }
}

func NewService(repo *Repository, cfg *Config, opts ...Option) *Service {
    if cfg == nil {
        cfg = DefaultConfig()
    }
    s := &Service{
        repo:   repo,
        cfg:    cfg,
        logger: slog.Default(),
        now:    time.Now,
    }
    for _, opt := range opts {
        opt(s)
    }
    return s
}

// CreateCard issues a card with models.InitialBalance. If the number is
// already taken it returns a *models.CardExistsError describing the stored
// card.
func (s *Service) CreateCard(ctx context.Context, req models.CardCredentials) (models.CardCredentials, error) {
    if req.Number == "" || req.Password == "" {
        return models.CardCredentials{}, fmt.Errorf("numeroCartao and senha are required: %w", models.ErrInvalidRequest)
    }

    existing, err := s.repo.FindCard(ctx, req.Number)
    switch {
    case err == nil:
        return models.CardCredentials{}, &models.CardExistsError{Existing: existing.Credentials()}
    case !errors.Is(err, ErrNotFound):
        return models.CardCredentials{}, fmt.Errorf("finding card: %w", err)
    }

    now := s.now().UTC()
    card := &models.Card{
        ID:        uuid.New().String(),
        Number:    req.Number,
        Password:  req.Password,
        Balance:   models.InitialBalance,
        CreatedAt: now,
        UpdatedAt: now,
    }
    if err := s.repo.CreateCard(ctx, card); err != nil {
        if !errors.Is(err, ErrConflict) {
            return models.CardCredentials{}, fmt.Errorf("creating card: %w", err)
        }
        // lost the insert race; report the winner
        winner, findErr := s.repo.FindCard(ctx, req.Number)
        if findErr != nil {
            return models.CardCredentials{}, fmt.Errorf("finding conflicting card: %w", findErr)
        }
        return models.CardCredentials{}, &models.CardExistsError{Existing: winner.Credentials()}
    }

    s.logger.Info("card issued", slog.String("card", pan.Mask(card.Number)))
    if s.metrics != nil {
        s.metrics.cardsIssued.Inc()
    }
    return card.Credentials(), nil
}

// Balance returns the stored balance, or ErrNotFound.
func (s *Service) Balance(ctx context.Context, number string) (decimal.Decimal, error) {
    card, err := s.repo.FindCard(ctx, number)
    if err != nil {
        if errors.Is(err, ErrNotFound) {
            return decimal.Zero, ErrNotFound
        }
        return decimal.Zero, fmt.Errorf("finding card: %w", err)
    }
    return card.Balance, nil
}

// ListTransactions returns the authorized debits of a known card.
func (s *Service) ListTransactions(ctx context.Context, number string) ([]*models.Transaction, error) {
    if _, err := s.repo.FindCard(ctx, number); err != nil {
        if errors.Is(err, ErrNotFound) {
            return nil, ErrNotFound
        }
        return nil, fmt.Errorf("finding card: %w", err)
    }
    transactions, err := s.repo.ListTransactions(ctx, number)
    if err != nil {
        return nil, fmt.Errorf("listing transactions: %w", err)
    }
    return transactions, nil
}

// Authorize debits req.Amount from the card. Checks run in a fixed order:
// card existence, then password, then balance. A nil error means the debit
// is committed.
func (s *Service) Authorize(ctx context.Context, req models.AuthorizationRequest) error {
    err := s.authorize(ctx, req)
    if s.metrics != nil {
        s.metrics.observeAuthorization(err)
    }
    return err
}

func (s *Service) authorize(ctx context.Context, req models.AuthorizationRequest) error {
    if err := validateAmount(req.Amount); err != nil {
        return err
    }

    retries := s.cfg.MaxDebitRetries
    if retries <= 0 {
        retries = 1
    }
    for attempt := 0; attempt < retries; attempt++ {
        if err := ctx.Err(); err != nil {
            return err
        }

        card, err := s.repo.FindCard(ctx, req.CardNumber)
        if err != nil {
            if errors.Is(err, ErrNotFound) {
                return models.ErrCardNotFound
            }
            return fmt.Errorf("finding card: %w", err)
        }
        if subtle.ConstantTimeCompare([]byte(card.Password), []byte(req.Password)) != 1 {
            return models.ErrInvalidPassword
        }
        if card.Balance.LessThan(req.Amount) {
            return models.ErrInsufficientBalance
        }

        card.Balance = card.Balance.Sub(req.Amount)
        txn := &models.Transaction{
            ID:         uuid.New().String(),
            CardID:     card.ID,
            CardNumber: card.Number,
            Amount:     req.Amount,
            CreatedAt:  s.now().UTC(),
        }
        err = s.repo.UpdateBalance(ctx, card, txn)
        if err == nil {
            s.logger.Info("transaction authorized",
                slog.String("card", pan.Mask(card.Number)),
                slog.String("amount", req.Amount.StringFixed(2)),
                slog.String("tx_id", txn.ID))
            s.publish(ctx, card, txn)
            return nil
        }
        if !errors.Is(err, ErrConflict) {
            return fmt.Errorf("debiting card: %w", err)
        }
        s.logger.Debug("concurrent update, retrying",
            slog.String("card", pan.Mask(card.Number)),
            slog.Int("attempt", attempt+1))
    }
    return models.ErrConcurrentUpdate
}

func (s *Service) publish(ctx context.Context, card *models.Card, txn *models.Transaction) {
    if s.publisher == nil {
        return
    }
    event := models.TransactionAuthorized{
        TransactionID: txn.ID,
        CardNumber:    pan.Mask(card.Number),
        Amount:        txn.Amount,
        Balance:       card.Balance,
        OccurredAt:    txn.CreatedAt,
    }
    // the debit is already committed; a lost event is logged, not rolled back
    if err := s.publisher.Publish(ctx, card.ID, event); err != nil {
        s.logger.Error("publishing transaction event", "err", err, slog.String("tx_id", txn.ID))
    }
}

// validateAmount accepts positive amounts with at most two decimal places.
func validateAmount(amount decimal.Decimal) error {
    if !amount.IsPositive() {
        return models.ErrInvalidAmount
    }
    if !amount.Equal(amount.Round(2)) {
        return models.ErrInvalidAmount
    }
    return nil
}
