package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Papel-hub/talentoStore/models"
	"github.com/Papel-hub/talentoStore/utils"
)

const DefaultBaseURL = "https://api.mercadopago.com"

// ErrNotConfigured is permanent: redelivering a notification cannot supply
// the missing token.
var ErrNotConfigured error = notConfiguredError{}

type notConfiguredError struct{}

func (notConfiguredError) Error() string {
	return "mercado pago access token not configured"
}

func (notConfiguredError) Temporary() bool { return false }

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mercado pago: HTTP %d: %s", e.Status, e.Message)
}

// Client talks to the Mercado Pago REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "mercadopago",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// Client errors are answers, not outages.
			IsSuccessful: func(err error) bool {
				var apiErr *APIError
				return err == nil || (errors.As(err, &apiErr) && !apiErr.Temporary())
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("[Gateway] breaker %s: %s -> %s", name, from, to)
			},
		}),
	}
}

type identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type payer struct {
	Name           string          `json:"name,omitempty"`
	Email          string          `json:"email,omitempty"`
	Identification *identification `json:"identification,omitempty"`
}

type item struct {
	ID         string      `json:"id,omitempty"`
	Title      string      `json:"title"`
	Quantity   int         `json:"quantity"`
	UnitPrice  json.Number `json:"unit_price"`
	CurrencyID string      `json:"currency_id"`
}

type preferenceBody struct {
	Items             []item          `json:"items"`
	Payer             payer           `json:"payer"`
	BackURLs          models.BackURLs `json:"back_urls"`
	AutoReturn        string          `json:"auto_return,omitempty"`
	ExternalReference string          `json:"external_reference,omitempty"`
	NotificationURL   string          `json:"notification_url,omitempty"`
}

type preferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// CreatePreference registers the amount to collect and returns the checkout
// redirect. The external reference doubles as the idempotency key, so a retry
// for the same order does not open a second preference.
func (c *Client) CreatePreference(ctx context.Context, req models.PreferenceRequest) (models.Preference, error) {
	body := preferenceBody{
		Items:             make([]item, 0, len(req.Items)),
		Payer:             payer{Name: req.Payer.Name, Email: req.Payer.Email},
		BackURLs:          req.BackURLs,
		AutoReturn:        req.AutoReturn,
		ExternalReference: req.ExternalReference,
		NotificationURL:   req.NotificationURL,
	}
	for _, it := range req.Items {
		body.Items = append(body.Items, item{
			ID:         it.ID,
			Title:      it.Title,
			Quantity:   it.Quantity,
			UnitPrice:  json.Number(it.UnitPrice.StringFixed(2)),
			CurrencyID: it.CurrencyID,
		})
	}
	if cpf := utils.Digits(req.Payer.TaxID); cpf != "" {
		body.Payer.Identification = &identification{Type: "CPF", Number: cpf}
	}

	headers := map[string]string{}
	if req.ExternalReference != "" {
		headers["X-Idempotency-Key"] = "pref-" + req.ExternalReference
	}

	var resp preferenceResponse
	if err := c.do(ctx, http.MethodPost, "/checkout/preferences", body, headers, &resp); err != nil {
		return models.Preference{}, err
	}
	redirect := resp.InitPoint
	if redirect == "" {
		redirect = resp.SandboxInitPoint
	}
	if resp.ID == "" || redirect == "" {
		return models.Preference{}, errors.New("mercado pago: preference response without id or init_point")
	}
	return models.Preference{ID: resp.ID, RedirectURL: redirect}, nil
}

type paymentResponse struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	StatusDetail      string      `json:"status_detail"`
	ExternalReference string      `json:"external_reference"`
	DateLastUpdated   string      `json:"date_last_updated"`
	Order             *struct {
		ID   json.Number `json:"id"`
		Type string      `json:"type"`
	} `json:"order"`
}

type merchantOrderResponse struct {
	PreferenceID string `json:"preference_id"`
}

// GetPayment fetches the authoritative payment state. The preference id is
// resolved through the payment's merchant order when the payment has one.
func (c *Client) GetPayment(ctx context.Context, id string) (models.PaymentDetails, error) {
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return models.PaymentDetails{}, &APIError{Status: http.StatusBadRequest, Message: "payment id must be numeric"}
	}

	var p paymentResponse
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+id, nil, nil, &p); err != nil {
		return models.PaymentDetails{}, err
	}

	details := models.PaymentDetails{
		ID:                p.ID.String(),
		Status:            p.Status,
		StatusDetail:      p.StatusDetail,
		ExternalReference: p.ExternalReference,
	}
	if t, err := time.Parse(time.RFC3339Nano, p.DateLastUpdated); err == nil {
		details.LastUpdated = t
	}

	if p.Order != nil && p.Order.ID != "" && (p.Order.Type == "" || p.Order.Type == "mercadopago") {
		var mo merchantOrderResponse
		err := c.do(ctx, http.MethodGet, "/merchant_orders/"+p.Order.ID.String(), nil, nil, &mo)
		var apiErr *APIError
		switch {
		case err == nil:
			details.PreferenceID = mo.PreferenceID
		case errors.As(err, &apiErr) && !apiErr.Temporary():
			// The payment itself is known; callers match on the external reference.
			log.Printf("[Gateway] merchant order %s for payment %s: %v", p.Order.ID, details.ID, err)
		default:
			return models.PaymentDetails{}, fmt.Errorf("resolve merchant order %s: %w", p.Order.ID, err)
		}
	}
	return details, nil
}

func (c *Client) do(ctx context.Context, method, path string, in interface{}, headers map[string]string, out interface{}) error {
	if c.token == "" {
		return ErrNotConfigured
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	raw, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(req)
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) roundTrip(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mercado pago %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	return raw, nil
}

// Temporary reports whether retrying the same call may succeed.
func (e *APIError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}
