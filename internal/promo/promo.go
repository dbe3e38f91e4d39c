package promo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"bus-ticketing/internal/logger"
)

// Result is the promo validator's verdict for one code/amount/user/route.
type Result struct {
	Valid           bool    `json:"valid"`
	DiscountAmount  float64 `json:"discount_amount"`
	RejectionReason string  `json:"rejection_reason,omitempty"`
}

// Validator is the promo collaborator boundary: a pure function of
// code, amount, user and route. An invalid code is a Result, not an
// error; errors mean the collaborator itself failed.
type Validator interface {
	Validate(ctx context.Context, code string, amount float64, userID, routeID string) (Result, error)
}

// HTTPValidator calls the promo service over HTTP.
type HTTPValidator struct {
	baseURL string
	client  *http.Client
	logger  *logger.Logger
}

func NewHTTPValidator(baseURL string, client *http.Client, log *logger.Logger) *HTTPValidator {
	if client == nil {
		client = http.DefaultClient
	}
	if len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return &HTTPValidator{baseURL: baseURL, client: client, logger: log}
}

type validateRequest struct {
	Code    string  `json:"code"`
	Amount  float64 `json:"amount"`
	UserID  string  `json:"user_id"`
	RouteID string  `json:"route_id"`
}

func (v *HTTPValidator) Validate(ctx context.Context, code string, amount float64, userID, routeID string) (Result, error) {
	body, err := json.Marshal(validateRequest{Code: code, Amount: amount, UserID: userID, RouteID: routeID})
	if err != nil {
		return Result{}, err
	}

	url := v.baseURL + "/internal/v1/promos/validate"
	v.logger.Debug("PROMO", fmt.Sprintf("Validating promo %s for %.2f", code, amount))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create promo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("promo service error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("promo service returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("malformed promo response: %w", err)
	}
	return result, nil
}
