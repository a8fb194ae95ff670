package authorizer_test

import (
    "bytes"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/alovak/mini-authorizer/authorizer"
    "github.com/alovak/mini-authorizer/authorizer/models"
    "github.com/go-chi/chi/v5"
    "github.com/shopspring/decimal"
    "github.com/stretchr/testify/require"
)

func newRouter() chi.Router {
    router := chi.NewRouter()
    api := authorizer.NewAPI(authorizer.NewService(authorizer.NewRepository(), authorizer.DefaultConfig()), nil)
    api.AppendRoutes(router)
    return router
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
    t.Helper()
    var req *http.Request
    if body == "" {
        req = httptest.NewRequest(method, path, nil)
    } else {
        req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
        req.Header.Set("Content-Type", "application/json")
    }
    w := httptest.NewRecorder()
    router.ServeHTTP(w, req)
    return w
}

func TestAPI(t *testing.T) {
    router := newRouter()

    t.Run("create card", func(t *testing.T) {
        w := do(t, router, http.MethodPost, "/cartoes", `{"numeroCartao":"6549873025634501","senha":"1234"}`)
        require.Equal(t, http.StatusCreated, w.Code)

        card := models.CardCredentials{}
        require.NoError(t, json.Unmarshal(w.Body.Bytes(), &card))
        require.Equal(t, "6549873025634501", card.Number)
        require.Equal(t, "1234", card.Password)
    })

    t.Run("create duplicate card returns the stored card", func(t *testing.T) {
        w := do(t, router, http.MethodPost, "/cartoes", `{"numeroCartao":"6549873025634501","senha":"9999"}`)
        require.Equal(t, http.StatusUnprocessableEntity, w.Code)
        require.JSONEq(t, `{"numeroCartao":"6549873025634501","senha":"1234"}`, w.Body.String())
    })

    t.Run("balance of a new card", func(t *testing.T) {
        w := do(t, router, http.MethodGet, "/cartoes/6549873025634501", "")
        require.Equal(t, http.StatusOK, w.Code)
        require.Equal(t, "500.00", w.Body.String())
    })

    t.Run("balance of unknown card", func(t *testing.T) {
        w := do(t, router, http.MethodGet, "/cartoes/0000000000000000", "")
        require.Equal(t, http.StatusNotFound, w.Code)
        require.Empty(t, w.Body.String())
    })

    t.Run("authorize transaction", func(t *testing.T) {
        w := do(t, router, http.MethodPost, "/transacoes", `{"numeroCartao":"6549873025634501","senhaCartao":"1234","valor":10.00}`)
        require.Equal(t, http.StatusCreated, w.Code)
        require.Equal(t, "OK", w.Body.String())

        w = do(t, router, http.MethodGet, "/cartoes/6549873025634501", "")
        require.Equal(t, "490.00", w.Body.String())
    })

    t.Run("authorization failures", func(t *testing.T) {
        cases := []struct {
            name string
            body string
            want string
        }{
            {"unknown card", `{"numeroCartao":"0000000000000000","senhaCartao":"1234","valor":10}`, "CARTAO_INEXISTENTE"},
            {"wrong password", `{"numeroCartao":"6549873025634501","senhaCartao":"0000","valor":10}`, "SENHA_INVALIDA"},
            {"insufficient balance", `{"numeroCartao":"6549873025634501","senhaCartao":"1234","valor":1000}`, "SALDO_INSUFICIENTE"},
            {"zero amount", `{"numeroCartao":"6549873025634501","senhaCartao":"1234","valor":0}`, "VALOR_INVALIDO"},
            {"three decimals", `{"numeroCartao":"6549873025634501","senhaCartao":"1234","valor":1.005}`, "VALOR_INVALIDO"},
        }
        for _, c := range cases {
            t.Run(c.name, func(t *testing.T) {
                w := do(t, router, http.MethodPost, "/transacoes", c.body)
                require.Equal(t, http.StatusUnprocessableEntity, w.Code)
                require.Equal(t, c.want, w.Body.String())
            })
        }

        w := do(t, router, http.MethodGet, "/cartoes/6549873025634501", "")
        require.Equal(t, "490.00", w.Body.String())
    })

    t.Run("malformed body", func(t *testing.T) {
        w := do(t, router, http.MethodPost, "/transacoes", `{"numeroCartao":`)
        require.Equal(t, http.StatusBadRequest, w.Code)

        w = do(t, router, http.MethodPost, "/cartoes", `{"numeroCartao":""}`)
        require.Equal(t, http.StatusBadRequest, w.Code)
    })

    t.Run("list transactions", func(t *testing.T) {
        w := do(t, router, http.MethodGet, "/cartoes/6549873025634501/transacoes", "")
        require.Equal(t, http.StatusOK, w.Code)

        var transactions []*models.Transaction
        require.NoError(t, json.Unmarshal(w.Body.Bytes(), &transactions))
        require.Len(t, transactions, 1)
        require.True(t, decimal.RequireFromString("10").Equal(transactions[0].Amount))
        require.NotEmpty(t, transactions[0].ID)

        w = do(t, router, http.MethodGet, "/cartoes/0000000000000000/transacoes", "")
        require.Equal(t, http.StatusNotFound, w.Code)
    })
}

func TestAPI_AmountAcceptedAsString(t *testing.T) {
    router := newRouter()

    w := do(t, router, http.MethodPost, "/cartoes", `{"numeroCartao":"4111111111111111","senha":"pw"}`)
    require.Equal(t, http.StatusCreated, w.Code)

    w = do(t, router, http.MethodPost, "/transacoes", `{"numeroCartao":"4111111111111111","senhaCartao":"pw","valor":"0.10"}`)
    require.Equal(t, http.StatusCreated, w.Code)

    w = do(t, router, http.MethodGet, "/cartoes/4111111111111111", "")
    require.Equal(t, "499.90", w.Body.String())
}
