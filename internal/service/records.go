package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dan9191/vehicle-valuation/internal/models"
	"github.com/Dan9191/vehicle-valuation/internal/repository"
	"github.com/Dan9191/vehicle-valuation/internal/utils"
	"github.com/Dan9191/vehicle-valuation/internal/valuation"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// RCDetails returns the stored RC record, fetching it from the registry when unknown
func (s *Service) RCDetails(ctx context.Context, rcNumber string) (*models.RCDetails, error) {
	return s.lookupRC(ctx, rcNumber, false)
}

func (s *Service) lookupRC(ctx context.Context, rcNumber string, refresh bool) (*models.RCDetails, error) {
	rcNumber = utils.NormalizeRCNumber(rcNumber)
	if !refresh {
		rc, err := s.repo.GetRCDetails(ctx, rcNumber)
		if err == nil {
			return rc, nil
		}
		if !errors.Is(err, repository.ErrNotFound) || s.rc == nil {
			return nil, err
		}
	}
	if s.rc == nil {
		return nil, fmt.Errorf("%s: %w", rcNumber, ErrRCLookupUnavailable)
	}

	rc, err := s.rc.FetchVehicleDetails(ctx, rcNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rc details: %w", err)
	}
	if err := s.repo.UpsertRCDetails(ctx, rc); err != nil {
		return nil, err
	}
	s.log.Infof("RC details stored: %s", rc.RCNumber)
	return rc, nil
}

// History lists the valuations of one RC, newest first
func (s *Service) History(ctx context.Context, rcNumber string) ([]models.ValuationRecord, error) {
	return s.repo.ValuationHistory(ctx, utils.NormalizeRCNumber(rcNumber))
}

// Recent lists the latest valuations; limit is clamped to [1, 100] with 10 as default
func (s *Service) Recent(ctx context.Context, limit int) ([]models.ValuationRecord, error) {
	return s.repo.RecentValuations(ctx, clampLimit(limit))
}

// Similar lists past valuations of the same model, year and fuel registered in the same state
func (s *Service) Similar(ctx context.Context, rcNumber string, limit int) ([]models.SimilarVehicle, error) {
	rc, err := s.repo.GetRCDetails(ctx, utils.NormalizeRCNumber(rcNumber))
	if err != nil {
		return nil, err
	}
	attrs := valuation.VehicleAttributes{RegistrationDate: rc.RegistrationDate, ManufacturingDate: rc.ManufacturingDate}
	year := modelYear(attrs)
	if year == 0 {
		return nil, &valuation.MissingRequiredInputError{Field: "manufacturing_date", Reason: "stored RC has no usable date"}
	}

	state := rc.RegisteredAt
	if _, after, ok := strings.Cut(rc.RegisteredAt, ","); ok {
		state = strings.TrimSpace(after)
	}
	return s.repo.SimilarVehicles(ctx, state, year, rc.FuelType, rc.MakerModel, clampLimit(limit))
}

// Certificate renders the latest valuation of an RC as an XML certificate
func (s *Service) Certificate(ctx context.Context, rcNumber string) ([]byte, error) {
	rcNumber = utils.NormalizeRCNumber(rcNumber)
	history, err := s.repo.ValuationHistory(ctx, rcNumber)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("valuation for %s: %w", rcNumber, repository.ErrNotFound)
	}
	return utils.BuildValuationCertificate(history[0], s.now())
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}
