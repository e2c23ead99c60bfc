// Package shipping talks to the external shipping provider. The provider
// exposes an EasyPost-style REST API: create a shipment to get rates, buy a
// rate to get a label, refund a purchased shipment.
package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"warehouse-service/internal/util"
)

type Address struct {
	Name    string `json:"name,omitempty"`
	Company string `json:"company,omitempty"`
	Street1 string `json:"street1"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Parcel dimensions are inches, weight is ounces.
type Parcel struct {
	Length   float64 `json:"length"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	WeightOz float64 `json:"weight"`
}

type Rate struct {
	ID       string  `json:"id"`
	Carrier  string  `json:"carrier"`
	Service  string  `json:"service"`
	Amount   float64 `json:"rate,string"`
	Currency string  `json:"currency"`
	Days     int     `json:"delivery_days,omitempty"`
}

type Shipment struct {
	ID    string `json:"id"`
	Rates []Rate `json:"rates"`
}

type PurchaseResult struct {
	ShipmentID     string
	Carrier        string
	Service        string
	Rate           float64
	TrackingNumber string
	TrackingURL    string
	LabelURL       string
}

type RefundResult struct {
	ShipmentID string
	Status     string
}

// Client is the surface the shipping service needs from a provider.
type Client interface {
	CreateShipment(ctx context.Context, from, to Address, parcel Parcel) (*Shipment, error)
	Buy(ctx context.Context, shipmentID, rateID string) (*PurchaseResult, error)
	Refund(ctx context.Context, shipmentID string) (*RefundResult, error)
}

type restClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient returns a REST client for the shipping provider.
func NewClient(baseURL, apiKey string, timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &restClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *restClient) CreateShipment(ctx context.Context, from, to Address, parcel Parcel) (*Shipment, error) {
	body := map[string]interface{}{
		"shipment": map[string]interface{}{
			"from_address": from,
			"to_address":   to,
			"parcel":       parcel,
		},
	}
	var shipment Shipment
	if err := c.do(ctx, http.MethodPost, "/shipments", body, &shipment); err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (c *restClient) Buy(ctx context.Context, shipmentID, rateID string) (*PurchaseResult, error) {
	body := map[string]interface{}{
		"rate": map[string]string{"id": rateID},
	}
	var resp struct {
		ID           string `json:"id"`
		SelectedRate Rate   `json:"selected_rate"`
		Tracker      struct {
			TrackingCode string `json:"tracking_code"`
			PublicURL    string `json:"public_url"`
		} `json:"tracker"`
		PostageLabel struct {
			LabelURL string `json:"label_url"`
		} `json:"postage_label"`
	}
	if err := c.do(ctx, http.MethodPost, "/shipments/"+shipmentID+"/buy", body, &resp); err != nil {
		return nil, err
	}
	return &PurchaseResult{
		ShipmentID:     resp.ID,
		Carrier:        resp.SelectedRate.Carrier,
		Service:        resp.SelectedRate.Service,
		Rate:           resp.SelectedRate.Amount,
		TrackingNumber: resp.Tracker.TrackingCode,
		TrackingURL:    resp.Tracker.PublicURL,
		LabelURL:       resp.PostageLabel.LabelURL,
	}, nil
}

func (c *restClient) Refund(ctx context.Context, shipmentID string) (*RefundResult, error) {
	var resp struct {
		ID           string `json:"id"`
		RefundStatus string `json:"refund_status"`
	}
	if err := c.do(ctx, http.MethodPost, "/shipments/"+shipmentID+"/refund", nil, &resp); err != nil {
		return nil, err
	}
	status := resp.RefundStatus
	if status == "" {
		status = "submitted"
	}
	return &RefundResult{ShipmentID: shipmentID, Status: status}, nil
}

func (c *restClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	start := time.Now()
	defer func() {
		util.ShippingAPILatency.Observe(time.Since(start).Seconds())
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.apiKey, "")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("shipping provider request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("shipping provider returned %d: %s", resp.StatusCode, string(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode provider response: %w", err)
		}
	}
	return nil
}
