package rc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Dan9191/vehicle-valuation/internal/config"
	"github.com/Dan9191/vehicle-valuation/internal/valuation"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const citySedan = `{
	"success": true,
	"status_code": 200,
	"message": "",
	"data": {
		"rc_number": "DL08AB1234",
		"owner_name": "A K***",
		"maker_description": "HONDA CARS INDIA LTD",
		"maker_model": "CITY 1.5 i-DTEC VX ",
		"registration_date": "2018-08-14",
		"manufacturing_date_formatted": "2018-07",
		"fuel_type": "DIESEL",
		"color": "PEARL WHITE",
		"body_type": "SEDAN",
		"cubic_capacity": "1498",
		"norms_type": "BHARAT STAGE IV",
		"registered_at": "SOUTH DELHI, Delhi",
		"vehicle_category": "LMV",
		"owner_number": "2",
		"financed": true,
		"insurance_upto": "2027-08-13"
	}
}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewClient(&config.Config{RCAPIURL: srv.URL, RCAPIToken: "secret"}, log)
}

func TestFetchVehicleDetails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req lookupRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "DL08AB1234", req.IDNumber)
		assert.True(t, req.Enrich)
		w.Write([]byte(citySedan))
	})

	rc, err := c.FetchVehicleDetails(context.Background(), "dl-08-ab-1234")
	require.NoError(t, err)

	assert.Equal(t, "DL08AB1234", rc.RCNumber)
	assert.Equal(t, "Honda", rc.Make)
	assert.Equal(t, "CITY 1.5 i-DTEC VX", rc.MakerModel)
	assert.Equal(t, "Diesel", rc.FuelType)
	assert.Equal(t, "Pearl White", rc.Color)
	assert.Equal(t, "Sedan", rc.BodyType)
	assert.Equal(t, "SOUTH DELHI", rc.City)
	assert.Equal(t, "DL08", rc.RTOCode)
	assert.Equal(t, 2, rc.OwnerCount)
	assert.Equal(t, "2018-07", rc.ManufacturingDate)
	assert.True(t, rc.Financed)
	assert.Contains(t, string(rc.RawData), "HONDA CARS INDIA LTD")
}

func TestFetchVehicleDetails_NumericOwner(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"success": true, "data": {"rc_number": "MH12XY0001", "maker_description": "", "owner_number": 3, "body_type": "SCOOTER"}}`))
	})

	rc, err := c.FetchVehicleDetails(context.Background(), "MH12XY0001")
	require.NoError(t, err)
	assert.Equal(t, 3, rc.OwnerCount)
	assert.Equal(t, "Unknown", rc.Make)
	assert.Equal(t, "Hatchback", rc.BodyType)
}

func TestFetchVehicleDetails_CategoryDescription(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		want  string
		class valuation.VehicleClass
	}{
		{"description wins", `{"vehicle_category": "2WN", "vehicle_category_description": "Scooter(2WN)"}`, "Scooter(2WN)", valuation.Class2W},
		{"code only", `{"vehicle_category": "LMV"}`, "LMV", valuation.Class4W},
		{"blank description", `{"vehicle_category": "LMV", "vehicle_category_description": " "}`, "LMV", valuation.Class4W},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"success": true, "data": ` + tt.data + `}`))
			})
			rc, err := c.FetchVehicleDetails(context.Background(), "MH12XY0001")
			require.NoError(t, err)
			assert.Equal(t, tt.want, rc.VehicleCategory)
			assert.Equal(t, tt.class, valuation.ClassFromCategory(rc.VehicleCategory))
		})
	}
}

func TestFetchVehicleDetails_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		notFound bool
	}{
		{"registry says no", http.StatusOK, `{"success": false, "message": "Invalid RC"}`, true},
		{"unprocessable", http.StatusUnprocessableEntity, `{}`, true},
		{"server error", http.StatusInternalServerError, `{}`, false},
		{"garbage", http.StatusOK, `<html>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.FetchVehicleDetails(context.Background(), "KA01AA0001")
			require.Error(t, err)
			assert.Equal(t, tt.notFound, errors.Is(err, ErrNotFound))
		})
	}
}

func TestFetchVehicleDetails_NoToken(t *testing.T) {
	c := NewClient(&config.Config{RCAPIURL: "http://unused"}, logrus.New())
	_, err := c.FetchVehicleDetails(context.Background(), "KA01AA0001")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestOwnerCount(t *testing.T) {
	assert.Equal(t, 1, ownerCount(nil))
	assert.Equal(t, 1, ownerCount(json.RawMessage(`"0"`)))
	assert.Equal(t, 4, ownerCount(json.RawMessage(`4`)))
	assert.Equal(t, 1, ownerCount(json.RawMessage(`"first"`)))
}
