package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dan9191/vehicle-valuation/internal/integrations/rc"
	"github.com/Dan9191/vehicle-valuation/internal/models"
	"github.com/Dan9191/vehicle-valuation/internal/repository"
	"github.com/Dan9191/vehicle-valuation/internal/service"
	"github.com/Dan9191/vehicle-valuation/internal/valuation"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValuator struct {
	healthErr error
	manual    func(service.ValuationRequest) (*service.ValuationResponse, error)
	byRC      func(service.RCValuationRequest) (*service.ValuationResponse, error)
	batch     func([]service.ValuationRequest) ([]service.BatchItem, error)
	idv       func(valuation.IDVRequest) (*service.IDVResponse, error)
	history   []models.ValuationRecord
	recentN   int
	similarN  int
	certErr   error
	rcErr     error
}

func (f *fakeValuator) Health(context.Context) error { return f.healthErr }

func (f *fakeValuator) ValueManual(_ context.Context, req service.ValuationRequest) (*service.ValuationResponse, error) {
	return f.manual(req)
}

func (f *fakeValuator) ValueByRC(_ context.Context, req service.RCValuationRequest) (*service.ValuationResponse, error) {
	return f.byRC(req)
}

func (f *fakeValuator) ValueBatch(_ context.Context, reqs []service.ValuationRequest) ([]service.BatchItem, error) {
	return f.batch(reqs)
}

func (f *fakeValuator) CalculateIDV(_ context.Context, req valuation.IDVRequest) (*service.IDVResponse, error) {
	return f.idv(req)
}

func (f *fakeValuator) RCDetails(_ context.Context, rcNumber string) (*models.RCDetails, error) {
	if f.rcErr != nil {
		return nil, f.rcErr
	}
	return &models.RCDetails{RCNumber: rcNumber}, nil
}

func (f *fakeValuator) History(context.Context, string) ([]models.ValuationRecord, error) {
	return f.history, nil
}

func (f *fakeValuator) Recent(_ context.Context, limit int) ([]models.ValuationRecord, error) {
	f.recentN = limit
	return []models.ValuationRecord{}, nil
}

func (f *fakeValuator) Similar(_ context.Context, _ string, limit int) ([]models.SimilarVehicle, error) {
	f.similarN = limit
	return []models.SimilarVehicle{}, nil
}

func (f *fakeValuator) Certificate(_ context.Context, rcNumber string) ([]byte, error) {
	if f.certErr != nil {
		return nil, f.certErr
	}
	return []byte(`<ValuationCertificate uid="u1"/>`), nil
}

func serve(t *testing.T, f *fakeValuator, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	r := mux.NewRouter()
	NewHandler(f, log).RegisterRoutes(r)

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, rd))
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(t, &fakeValuator{}, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(t, &fakeValuator{healthErr: errors.New("db down")}, "GET", "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestValueManual(t *testing.T) {
	var got service.ValuationRequest
	f := &fakeValuator{manual: func(req service.ValuationRequest) (*service.ValuationResponse, error) {
		got = req
		return &service.ValuationResponse{
			UID:          "u1",
			Result:       &valuation.Result{FairMarketRetailValue: 382674, DealerPurchasePrice: 336407, EngineUsed: valuation.EngineICE},
			MarketSource: models.MarketSourceRequest,
		}, nil
	}}

	rec := serve(t, f, "POST", "/api/v1/valuation/manual",
		`{"make":"Maruti Suzuki","model":"Swift","fuel_type":"Petrol","current_ex_showroom":650000,"market_listings_mean":425000}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Swift", got.Model)
	require.NotNil(t, got.MarketListingsMean)
	assert.Equal(t, 425000.0, *got.MarketListingsMean)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "u1", body["uid"])
	assert.Equal(t, 382674.0, body["fair_market_retail_value"])
	assert.Equal(t, "request", body["market_source"])
}

func TestValueManual_BadBody(t *testing.T) {
	rec := serve(t, &fakeValuator{}, "POST", "/api/v1/valuation/manual", `{"make":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"missing input", &valuation.MissingRequiredInputError{Field: "rc_number"}, http.StatusBadRequest},
		{"stage wrapped", &valuation.StageError{Stage: valuation.StageEngineComputing, Err: &valuation.MissingRequiredInputError{Field: "battery_capacity_kwh"}}, http.StatusBadRequest},
		{"rc unknown locally", fmt.Errorf("row: %w", repository.ErrNotFound), http.StatusNotFound},
		{"rc unknown in registry", fmt.Errorf("failed to fetch rc details: %w", rc.ErrNotFound), http.StatusNotFound},
		{"registry unavailable", service.ErrRCLookupUnavailable, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeValuator{byRC: func(service.RCValuationRequest) (*service.ValuationResponse, error) {
				return nil, tt.err
			}}
			rec := serve(t, f, "POST", "/api/v1/valuation/rc", `{"rc_number":"MH12AB1234"}`)
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestValueBatch(t *testing.T) {
	f := &fakeValuator{batch: func(reqs []service.ValuationRequest) ([]service.BatchItem, error) {
		if len(reqs) > 1 {
			return nil, service.ErrBatchTooLarge
		}
		return []service.BatchItem{{Index: 0, Error: "missing required input"}}, nil
	}}

	rec := serve(t, f, "POST", "/api/v1/valuation/batch", `{"vehicles":[{"make":"Tata"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results":[{"index":0,"error":"missing required input"}]}`, rec.Body.String())

	rec = serve(t, f, "POST", "/api/v1/valuation/batch", `{"vehicles":[{},{}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalculateIDV(t *testing.T) {
	f := &fakeValuator{idv: func(req valuation.IDVRequest) (*service.IDVResponse, error) {
		assert.Equal(t, "Scooter(2WN)", req.VehicleCategory)
		return &service.IDVResponse{UID: "i1", IDVResult: &valuation.IDVResult{IDV: 23100, Status: valuation.IDVStatusSuccess}, ReviewNotified: true}, nil
	}}

	rec := serve(t, f, "POST", "/api/v1/idv/calculate", `{"vehicle_category":"Scooter(2WN)","original_onroad_price":66000}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 23100.0, body["idv"])
	assert.Equal(t, true, body["review_notified"])
}

func TestReadRoutes(t *testing.T) {
	t.Run("recent is not an rc", func(t *testing.T) {
		f := &fakeValuator{}
		rec := serve(t, f, "GET", "/api/v1/valuations/recent?limit=25", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 25, f.recentN)
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := serve(t, &fakeValuator{}, "GET", "/api/v1/valuations/recent?limit=abc", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("history", func(t *testing.T) {
		f := &fakeValuator{history: []models.ValuationRecord{{UID: "u1"}}}
		rec := serve(t, f, "GET", "/api/v1/valuations/MH12AB1234", "")
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = serve(t, &fakeValuator{}, "GET", "/api/v1/valuations/MH12AB1234", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("certificate", func(t *testing.T) {
		rec := serve(t, &fakeValuator{}, "GET", "/api/v1/valuations/MH12AB1234/certificate", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), `uid="u1"`)

		f := &fakeValuator{certErr: fmt.Errorf("valuation: %w", repository.ErrNotFound)}
		rec = serve(t, f, "GET", "/api/v1/valuations/MH12AB1234/certificate", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("similar", func(t *testing.T) {
		f := &fakeValuator{}
		rec := serve(t, f, "GET", "/api/v1/valuations/MH12AB1234/similar", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, f.similarN)
	})

	t.Run("rc details", func(t *testing.T) {
		rec := serve(t, &fakeValuator{}, "GET", "/api/v1/rc/MH12AB1234", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"rc_number":"MH12AB1234"`)

		rec = serve(t, &fakeValuator{rcErr: rc.ErrNotFound}, "GET", "/api/v1/rc/XX00", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
