package authorizer

import (
    "encoding/json"
    "errors"
    "net/http"

    "github.com/alovak/mini-authorizer/authorizer/models"
    "github.com/go-chi/chi/v5"
    "golang.org/x/exp/slog"
)

// API is a HTTP API for the authorizer service
type API struct {
    authorizer *Service
    logger     *slog.Logger
}

func NewAPI(authorizer *Service, logger *slog.Logger) *API {
    if logger == nil {
        logger = slog.Default()
    }
    return &API{
        authorizer: authorizer,
        logger:     logger,
    }
}

func (a *API) AppendRoutes(r chi.Router) {
    r.Route("/cartoes", func(r chi.Router) {
        r.Post("/", a.createCard)
        r.Route("/{cardNumber}", func(r chi.Router) {
            r.Get("/", a.getBalance)
            r.Get("/transacoes", a.getTransactions)
        })
    })
    r.Post("/transacoes", a.authorizeTransaction)
}

func (a *API) createCard(w http.ResponseWriter, r *http.Request) {
    create := models.CardCredentials{}
    if err := json.NewDecoder(r.Body).Decode(&create); err != nil {
        http.Error(w, err.Error(), http.StatusBadRequest)
        return
    }

    card, err := a.authorizer.CreateCard(r.Context(), create)
    if err != nil {
        var exists *models.CardExistsError
        switch {
        case errors.As(err, &exists):
            writeJSON(w, http.StatusUnprocessableEntity, exists.Existing)
        case errors.Is(err, models.ErrInvalidRequest):
            http.Error(w, err.Error(), http.StatusBadRequest)
        default:
            a.internalError(w, "creating card", err)
        }
        return
    }

    writeJSON(w, http.StatusCreated, card)
}

func (a *API) getBalance(w http.ResponseWriter, r *http.Request) {
    cardNumber := chi.URLParam(r, "cardNumber")

    balance, err := a.authorizer.Balance(r.Context(), cardNumber)
    if err != nil {
        if errors.Is(err, ErrNotFound) {
            w.WriteHeader(http.StatusNotFound)
        } else {
            a.internalError(w, "getting balance", err)
        }
        return
    }

    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(http.StatusOK)
    // bare JSON number, two decimal places
    w.Write([]byte(balance.StringFixed(2)))
}

func (a *API) getTransactions(w http.ResponseWriter, r *http.Request) {
    cardNumber := chi.URLParam(r, "cardNumber")

    transactions, err := a.authorizer.ListTransactions(r.Context(), cardNumber)
    if err != nil {
        if errors.Is(err, ErrNotFound) {
            w.WriteHeader(http.StatusNotFound)
        } else {
            a.internalError(w, "listing transactions", err)
        }
        return
    }

    writeJSON(w, http.StatusOK, transactions)
}

func (a *API) authorizeTransaction(w http.ResponseWriter, r *http.Request) {
    req := models.AuthorizationRequest{}
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        http.Error(w, err.Error(), http.StatusBadRequest)
        return
    }

    err := a.authorizer.Authorize(r.Context(), req)
    if err != nil {
        if token := models.Token(err); token != "" {
            writeText(w, http.StatusUnprocessableEntity, token)
        } else if errors.Is(err, models.ErrConcurrentUpdate) {
            http.Error(w, err.Error(), http.StatusConflict)
        } else {
            a.internalError(w, "authorizing transaction", err)
        }
        return
    }

    writeText(w, http.StatusCreated, "OK")
}

func (a *API) internalError(w http.ResponseWriter, msg string, err error) {
    a.logger.Error(msg, "err", err)
    http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(code)
    json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, code int, body string) {
    w.Header().Set("Content-Type", "text/plain; charset=utf-8")
    w.WriteHeader(code)
    w.Write([]byte(body))
}
