package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/masarif/masarif-backend/internal/model"
)

// HTTPResolver calls an external classifier over a timeout-bounded HTTP call.
// It is always composed behind WithFallback; its errors never reach callers.
type HTTPResolver struct {
	client *resty.Client
}

// NewHTTPResolver builds a resolver against baseURL. timeout bounds the whole
// round trip so a slow upstream degrades to the deterministic fallback
// instead of stalling the interaction.
func NewHTTPResolver(baseURL string, timeout time.Duration) *HTTPResolver {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &HTTPResolver{client: c}
}

// wireResolution is the upstream response shape. Amount travels as a string
// to avoid float rounding on money.
type wireResolution struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Entities   struct {
		Amount      string `json:"amount,omitempty"`
		Currency    string `json:"currency,omitempty"`
		Category    string `json:"category,omitempty"`
		AccountName string `json:"accountName,omitempty"`
		AccountType string `json:"accountType,omitempty"`
		OccurredAt  string `json:"occurredAt,omitempty"`
	} `json:"entities"`
}

func (r *HTTPResolver) Resolve(ctx context.Context, req Request) (model.Resolution, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(&req).
		Post("/v1/resolve")
	if err != nil {
		return model.Resolution{}, fmt.Errorf("intent upstream: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return model.Resolution{}, fmt.Errorf("intent upstream status %d", resp.StatusCode())
	}
	var wire wireResolution
	if err := json.Unmarshal(resp.Body(), &wire); err != nil {
		return model.Resolution{}, fmt.Errorf("intent upstream body: %w", err)
	}
	return fromWire(wire)
}

func fromWire(w wireResolution) (model.Resolution, error) {
	out := model.Resolution{Intent: model.IntentKind(w.Intent), Confidence: w.Confidence}
	if !model.ValidIntentKind(out.Intent) {
		return model.Resolution{}, fmt.Errorf("intent upstream: unknown intent %q", w.Intent)
	}
	if w.Entities.Amount != "" {
		d, err := decimal.NewFromString(w.Entities.Amount)
		if err != nil {
			return model.Resolution{}, fmt.Errorf("intent upstream: bad amount %q", w.Entities.Amount)
		}
		out.Entities.Amount = &d
	}
	out.Entities.Currency = w.Entities.Currency
	out.Entities.Category = w.Entities.Category
	out.Entities.AccountName = w.Entities.AccountName
	if w.Entities.AccountType != "" {
		t := model.AccountType(w.Entities.AccountType)
		if !model.ValidAccountType(t) {
			return model.Resolution{}, fmt.Errorf("intent upstream: unknown account type %q", w.Entities.AccountType)
		}
		out.Entities.AccountType = &t
	}
	if w.Entities.OccurredAt != "" {
		ts, err := time.Parse(time.RFC3339, w.Entities.OccurredAt)
		if err != nil {
			return model.Resolution{}, fmt.Errorf("intent upstream: bad occurredAt %q", w.Entities.OccurredAt)
		}
		out.Entities.OccurredAt = &ts
	}
	return out, nil
}
