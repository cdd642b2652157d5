package rc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Dan9191/vehicle-valuation/internal/config"
	"github.com/Dan9191/vehicle-valuation/internal/models"
	"github.com/Dan9191/vehicle-valuation/internal/utils"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotConfigured is returned when no API token is set
	ErrNotConfigured = errors.New("rc lookup is not configured")
	// ErrNotFound is returned when the registry has no record for the RC number
	ErrNotFound = errors.New("rc not found in registry")
)

// Client handles integration with the Surepass RC registry API
type Client struct {
	url    string
	token  string
	client *http.Client
	log    *logrus.Logger
}

// NewClient initializes a new RC registry client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		url:   cfg.RCAPIURL,
		token: cfg.RCAPIToken,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

type lookupRequest struct {
	IDNumber string `json:"id_number"`
	Enrich   bool   `json:"enrich"`
}

type lookupResponse struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

type rcData struct {
	RCNumber          string          `json:"rc_number"`
	OwnerName         string          `json:"owner_name"`
	MakerDescription  string          `json:"maker_description"`
	MakerModel        string          `json:"maker_model"`
	RegistrationDate  string          `json:"registration_date"`
	ManufacturingDate string          `json:"manufacturing_date_formatted"`
	FuelType          string          `json:"fuel_type"`
	Color             string          `json:"color"`
	BodyType          string          `json:"body_type"`
	CubicCapacity     string          `json:"cubic_capacity"`
	NormsType         string          `json:"norms_type"`
	RegisteredAt      string          `json:"registered_at"`
	VehicleCategory   string          `json:"vehicle_category"`
	CategoryDesc      string          `json:"vehicle_category_description"`
	OwnerNumber       json.RawMessage `json:"owner_number"`
	Financed          bool            `json:"financed"`
	InsuranceUpto     string          `json:"insurance_upto"`
}

// sendRequest posts a lookup for one RC number
func (c *Client) sendRequest(ctx context.Context, rcNumber string) ([]byte, error) {
	payload, err := json.Marshal(lookupRequest{IDNumber: rcNumber, Enrich: true})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%s: %w", rcNumber, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	c.log.Debugf("RC registry response: %s", string(body))
	return body, nil
}

// parseResponse maps a registry payload onto an RC record
func (c *Client) parseResponse(rcNumber string, raw []byte) (*models.RCDetails, error) {
	var resp lookupResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("%s (%s): %w", rcNumber, msg, ErrNotFound)
	}

	var d rcData
	if err := json.Unmarshal(resp.Data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse rc data: %w", err)
	}
	if d.RCNumber == "" {
		d.RCNumber = rcNumber
	}

	return &models.RCDetails{
		RCNumber:          utils.NormalizeRCNumber(d.RCNumber),
		OwnerName:         d.OwnerName,
		MakerDescription:  d.MakerDescription,
		Make:              utils.MakerFromDescription(d.MakerDescription),
		MakerModel:        strings.TrimSpace(d.MakerModel),
		RegistrationDate:  d.RegistrationDate,
		ManufacturingDate: d.ManufacturingDate,
		FuelType:          utils.TitleCase(d.FuelType),
		Color:             utils.TitleCase(d.Color),
		BodyType:          utils.BodyTypeFromRC(d.BodyType),
		CubicCapacity:     d.CubicCapacity,
		NormsType:         d.NormsType,
		RegisteredAt:      d.RegisteredAt,
		City:              utils.CityFromRegisteredAt(d.RegisteredAt),
		RTOCode:           utils.RTOFromRC(d.RCNumber),
		VehicleCategory:   vehicleCategory(d),
		OwnerCount:        ownerCount(d.OwnerNumber),
		Financed:          d.Financed,
		InsuranceUpto:     d.InsuranceUpto,
		RawData:           resp.Data,
	}, nil
}

// vehicleCategory prefers the long form such as "Scooter(2WN)" over the bare class code
func vehicleCategory(d rcData) string {
	if desc := strings.TrimSpace(d.CategoryDesc); desc != "" {
		return desc
	}
	return strings.TrimSpace(d.VehicleCategory)
}

// FetchVehicleDetails looks up an RC number in the registry
func (c *Client) FetchVehicleDetails(ctx context.Context, rcNumber string) (*models.RCDetails, error) {
	if c.token == "" {
		return nil, ErrNotConfigured
	}
	rcNumber = utils.NormalizeRCNumber(rcNumber)

	body, err := c.sendRequest(ctx, rcNumber)
	if err != nil {
		return nil, err
	}
	details, err := c.parseResponse(rcNumber, body)
	if err != nil {
		return nil, err
	}

	c.log.Infof("Retrieved RC details for %s: %s %s (%s)", details.RCNumber, details.Make, details.MakerModel, details.FuelType)
	return details, nil
}

// owner_number arrives as either a JSON number or a quoted digit string
func ownerCount(raw json.RawMessage) int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
