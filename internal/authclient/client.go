// Package authclient is an HTTP client for the authorizer API.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alovak/mini-authorizer/authorizer/models"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)

type Client struct {
	Base     string
	HTTP     *http.Client
	user     string
	password string
}

func New(base, user, password string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		Base:     strings.TrimRight(base, "/"),
		HTTP:     hc,
		user:     user,
		password: password,
	}
}

// CreateCard issues a card. A taken number yields a *models.CardExistsError
// carrying the stored card.
func (c *Client) CreateCard(ctx context.Context, number, password string) (models.CardCredentials, error) {
	var created models.CardCredentials

	resp, err := c.do(ctx, http.MethodPost, "/cartoes", models.CardCredentials{Number: number, Password: password})
	if err != nil {
		return created, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			return created, fmt.Errorf("decode card: %w", err)
		}
		return created, nil
	case http.StatusUnprocessableEntity:
		var existing models.CardCredentials
		if err := json.NewDecoder(resp.Body).Decode(&existing); err != nil {
			return created, fmt.Errorf("decode existing card: %w", err)
		}
		return created, &models.CardExistsError{Existing: existing}
	default:
		return created, statusError("create card", resp)
	}
}

func (c *Client) Balance(ctx context.Context, number string) (decimal.Decimal, error) {
	resp, err := c.do(ctx, http.MethodGet, "/cartoes/"+url.PathEscape(number), nil)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, statusError("balance", resp)
	}

	var balance decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&balance); err != nil {
		return decimal.Zero, fmt.Errorf("decode balance: %w", err)
	}
	return balance, nil
}

// Authorize returns nil on approval or one of the models authorization errors.
func (c *Client) Authorize(ctx context.Context, number, password string, amount decimal.Decimal) error {
	req := models.AuthorizationRequest{CardNumber: number, Password: password, Amount: amount}

	resp, err := c.do(ctx, http.MethodPost, "/transacoes", req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		return nil
	case http.StatusUnprocessableEntity:
		body, _ := io.ReadAll(resp.Body)
		token := strings.TrimSpace(string(body))
		if known := models.FromToken(token); known != nil {
			return known
		}
		return fmt.Errorf("authorize: unknown token %q", token)
	case http.StatusConflict:
		return models.ErrConcurrentUpdate
	default:
		return statusError("authorize", resp)
	}
}

func (c *Client) ListTransactions(ctx context.Context, number string) ([]*models.Transaction, error) {
	resp, err := c.do(ctx, http.MethodGet, "/cartoes/"+url.PathEscape(number)+"/transacoes", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("list transactions", resp)
	}

	var transactions []*models.Transaction
	if err := json.NewDecoder(resp.Body).Decode(&transactions); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	return transactions, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func statusError(op string, resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrUnauthorized
	}
	b, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("%s status=%d body=%s", op, resp.StatusCode, strings.TrimSpace(string(b)))
}
