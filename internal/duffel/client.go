package duffel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIError is a structured rejection from the provider. Code carries the
// provider's machine-readable error code when one was returned.
type APIError struct {
	StatusCode int
	Code       string
	Title      string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("duffel: status=%d code=%s %s", e.StatusCode, e.Code, e.Message)
}

// IsCode reports whether err is a provider rejection with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

type Client struct {
	baseURL  string
	cardsURL string
	token    string
	http     *http.Client
}

func NewClient(baseURL, cardsURL, token string) *Client {
	return &Client{
		baseURL:  baseURL,
		cardsURL: cardsURL,
		token:    token,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) GetOffer(ctx context.Context, offerID string) (*Offer, error) {
	var out Offer
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/air/offers/"+offerID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateHoldOrder(ctx context.Context, req OrderCreateRequest) (*Order, error) {
	var out Order
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/air/orders", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var out Order
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/air/orders/"+orderID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCardToken exchanges raw card data for a vault reference. Callers
// pass a short-deadline context; the charge never sees the raw PAN.
func (c *Client) CreateCardToken(ctx context.Context, card CardDetails) (*Card, error) {
	var out Card
	if err := c.do(ctx, http.MethodPost, c.cardsURL+"/payments/cards", card, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePaymentIntent(ctx context.Context, amount, currency, cardID string) (*PaymentIntent, error) {
	body := map[string]string{
		"amount":   amount,
		"currency": currency,
		"card_id":  cardID,
	}
	var out PaymentIntent
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/payments/payment_intents", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ConfirmPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	var out PaymentIntent
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/payments/payment_intents/"+intentID+"/actions/confirm", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	var out PaymentIntent
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/payments/payment_intents/"+intentID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePayment executes the charge against a held order.
func (c *Client) CreatePayment(ctx context.Context, orderID string, payment PaymentInput) (*Payment, error) {
	body := struct {
		OrderID string       `json:"order_id"`
		Payment PaymentInput `json:"payment"`
	}{OrderID: orderID, Payment: payment}

	var out Payment
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/air/payments", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// envelope matches the provider's {"data": ...} request/response wrapping.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

type errorEnvelope struct {
	Errors []struct {
		Code    string `json:"code"`
		Title   string `json:"title"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(struct {
			Data any `json:"data"`
		}{Data: body})
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Duffel-Version", "v2")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: res.StatusCode}
		var envErr errorEnvelope
		if err := json.Unmarshal(raw, &envErr); err == nil && len(envErr.Errors) > 0 {
			apiErr.Code = envErr.Errors[0].Code
			apiErr.Title = envErr.Errors[0].Title
			apiErr.Message = envErr.Errors[0].Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
