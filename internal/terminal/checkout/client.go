package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"pos-register/internal/terminal/cart"
	"pos-register/internal/terminal/session"
)

// ErrOrderPending maps the 409 the API returns when this cashier already
// has an unresolved card payment
var ErrOrderPending = errors.New("a payment is already pending for this terminal")

// ConnectivityError is returned when no HTTP response arrives at all
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return "could not reach the payment service: " + e.Err.Error()
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// Client submits card payments to the orders API
type Client struct {
	baseURL string
	http    *http.Client
	tokens  session.TokenSource
}

func NewClient(baseURL string, httpClient *http.Client, tokens session.TokenSource) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient, tokens: tokens}
}

type orderItem struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Name      string  `json:"name"`
	SKU       string  `json:"sku"`
}

type createOrderRequest struct {
	Items         []orderItem `json:"items"`
	PaymentMethod string      `json:"payment_method"`
	TotalAmount   float64     `json:"total_amount"`
}

// CreateOrder posts the frozen cart lines as a card payment. A 2xx means
// accepted and awaiting out-of-band confirmation; 409 becomes
// ErrOrderPending; transport failures become ConnectivityError.
func (c *Client) CreateOrder(ctx context.Context, items []cart.Item, total float64) error {
	payload := createOrderRequest{
		Items:         make([]orderItem, 0, len(items)),
		PaymentMethod: "card",
		TotalAmount:   total,
	}
	for _, item := range items {
		payload.Items = append(payload.Items, orderItem{
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
			Price:     item.Price,
			Name:      item.Name,
			SKU:       item.SKU,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/mercadopago/orders", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &ConnectivityError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		return ErrOrderPending
	case resp.StatusCode == http.StatusUnauthorized:
		return session.ErrSessionExpired
	default:
		return fmt.Errorf("payment request failed with status %d", resp.StatusCode)
	}
}

// CancelPending asks the API to cancel this cashier's pending order.
// Best effort; callers may ignore the error.
func (c *Client) CancelPending(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/api/mercadopago/orders/pending", nil)
	if err != nil {
		return err
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &ConnectivityError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("cancel request failed with status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}
