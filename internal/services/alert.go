package services

import (
	"context"
	"errors"
	"strings"

	"safewatch-backend/internal/models"
	"safewatch-backend/pkg/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// AlertStore is the persistence boundary the service depends on.
type AlertStore interface {
	Create(ctx context.Context, alert *models.Alert) (*models.Alert, error)
	FindAll(ctx context.Context) ([]*models.Alert, error)
	FindByOwner(ctx context.Context, ownerID string) ([]*models.Alert, error)
	FindByID(ctx context.Context, id string) (*models.Alert, error)
	Update(ctx context.Context, id string, patch *models.AlertPatch) (*models.Alert, error)
	Delete(ctx context.Context, id string) error
}

// MediaRemover deletes stored media that no alert references any more.
type MediaRemover interface {
	Delete(ctx context.Context, ref string) error
}

type AlertService struct {
	alertRepo AlertStore
	media     MediaRemover
	validator *validator.Validate
	policy    CoordinatePolicy
	logger    zerolog.Logger
}

// NewAlertService builds the service. media may be nil, in which case stored
// files are never removed.
func NewAlertService(alertRepo AlertStore, media MediaRemover) *AlertService {
	return &AlertService{
		alertRepo: alertRepo,
		media:     media,
		validator: validator.New(),
		policy:    CoordinatesPermissive,
		logger:    zerolog.Nop(),
	}
}

// SetCoordinatePolicy switches between permissive and strict coordinate parsing.
func (s *AlertService) SetCoordinatePolicy(policy CoordinatePolicy) {
	s.policy = policy
}

func (s *AlertService) SetLogger(logger zerolog.Logger) {
	s.logger = logger.With().Str("component", "alert_service").Logger()
}

type CreateAlertInput struct {
	Title       string `form:"title" json:"title" validate:"required"`
	Description string `form:"description" json:"description" validate:"required"`
	Location    string `form:"location" json:"location" validate:"required"`
	Latitude    string `form:"latitude" json:"latitude"`
	Longitude   string `form:"longitude" json:"longitude"`
}

// UpdateAlertInput carries a sparse patch; empty fields are left untouched.
type UpdateAlertInput struct {
	Title       string `form:"title" json:"title"`
	Description string `form:"description" json:"description"`
	Location    string `form:"location" json:"location"`
	Latitude    string `form:"latitude" json:"latitude"`
	Longitude   string `form:"longitude" json:"longitude"`
	Severity    string `form:"severity" json:"severity"`
	Category    string `form:"category" json:"category"`
}

func (s *AlertService) CreateAlert(ctx context.Context, callerID string, input *CreateAlertInput, mediaRef string) (*models.Alert, error) {
	alert, err := s.newAlert(callerID, input)
	if err != nil {
		metrics.RecordAlertOperation("create", outcome(err))
		return nil, err
	}
	alert.MediaRef = mediaRef

	created, err := s.alertRepo.Create(ctx, alert)
	if err != nil {
		err = storageError("create alert", err)
		metrics.RecordAlertOperation("create", outcome(err))
		return nil, err
	}

	metrics.RecordAlertOperation("create", outcome(nil))
	return created, nil
}

// newAlert validates the create input and applies the create-time defaults.
func (s *AlertService) newAlert(callerID string, input *CreateAlertInput) (*models.Alert, error) {
	if input == nil {
		input = &CreateAlertInput{}
	}
	trimmed := CreateAlertInput{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Location:    strings.TrimSpace(input.Location),
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
	}

	var invalid []string
	if err := s.validator.Struct(&trimmed); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return nil, err
		}
		for _, fe := range fieldErrors {
			invalid = append(invalid, strings.ToLower(fe.Field()))
		}
	}

	latitude, latOK := parseCoordinate(s.validator, s.policy, trimmed.Latitude, "latitude")
	if !latOK {
		invalid = append(invalid, "latitude")
	}
	longitude, lngOK := parseCoordinate(s.validator, s.policy, trimmed.Longitude, "longitude")
	if !lngOK {
		invalid = append(invalid, "longitude")
	}

	if len(invalid) > 0 {
		return nil, &ValidationError{Fields: invalid}
	}

	alert := &models.Alert{
		Title:       trimmed.Title,
		Description: trimmed.Description,
		Location:    trimmed.Location,
		Latitude:    latitude,
		Longitude:   longitude,
	}
	applyCreateDefaults(alert, callerID)
	return alert, nil
}

// applyCreateDefaults sets the fields a caller can never choose on create.
func applyCreateDefaults(alert *models.Alert, callerID string) {
	alert.OwnerID = callerID
	alert.Category = models.DefaultCategory
	alert.Severity = models.DefaultSeverity
	alert.ConfidenceScore = models.DefaultConfidenceScore
}

func (s *AlertService) GetAllAlerts(ctx context.Context) ([]*models.Alert, error) {
	alerts, err := s.alertRepo.FindAll(ctx)
	if err != nil {
		return nil, storageError("list alerts", err)
	}
	return nonNil(alerts), nil
}

func (s *AlertService) GetMyAlerts(ctx context.Context, callerID string) ([]*models.Alert, error) {
	alerts, err := s.alertRepo.FindByOwner(ctx, callerID)
	if err != nil {
		return nil, storageError("list owner alerts", err)
	}
	return nonNil(alerts), nil
}

func (s *AlertService) GetAlertByID(ctx context.Context, id string) (*models.Alert, error) {
	alert, err := s.alertRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError("get alert", err)
	}
	return alert, nil
}

func (s *AlertService) UpdateAlert(ctx context.Context, callerID, id string, input *UpdateAlertInput, mediaRef string) (*models.Alert, error) {
	alert, err := s.ownedAlert(ctx, callerID, id)
	if err != nil {
		metrics.RecordAlertOperation("update", outcome(err))
		return nil, err
	}

	patch, err := s.buildPatch(input, mediaRef)
	if err != nil {
		metrics.RecordAlertOperation("update", outcome(err))
		return nil, err
	}

	updated, err := s.alertRepo.Update(ctx, id, patch)
	if err != nil {
		err = storageError("update alert", err)
		metrics.RecordAlertOperation("update", outcome(err))
		return nil, err
	}

	if patch.MediaRef != nil && alert.MediaRef != "" && alert.MediaRef != *patch.MediaRef {
		s.removeMedia(ctx, alert.MediaRef)
	}

	metrics.RecordAlertOperation("update", outcome(nil))
	return updated, nil
}

// buildPatch turns the update input into a sparse patch: only non-empty
// fields are carried over.
func (s *AlertService) buildPatch(input *UpdateAlertInput, mediaRef string) (*models.AlertPatch, error) {
	patch := &models.AlertPatch{}
	if input == nil {
		input = &UpdateAlertInput{}
	}

	patch.Title = presentText(input.Title)
	patch.Description = presentText(input.Description)
	patch.Location = presentText(input.Location)
	patch.Severity = presentText(input.Severity)
	patch.Category = presentText(input.Category)

	var invalid []string
	if strings.TrimSpace(input.Latitude) != "" {
		value, ok := parseCoordinate(s.validator, s.policy, input.Latitude, "latitude")
		if !ok {
			invalid = append(invalid, "latitude")
		}
		patch.Latitude = models.OptionalFloat{Set: true, Value: value}
	}
	if strings.TrimSpace(input.Longitude) != "" {
		value, ok := parseCoordinate(s.validator, s.policy, input.Longitude, "longitude")
		if !ok {
			invalid = append(invalid, "longitude")
		}
		patch.Longitude = models.OptionalFloat{Set: true, Value: value}
	}
	if len(invalid) > 0 {
		return nil, &ValidationError{Fields: invalid}
	}

	if mediaRef != "" {
		patch.MediaRef = &mediaRef
	}
	return patch, nil
}

func (s *AlertService) DeleteAlert(ctx context.Context, callerID, id string) error {
	alert, err := s.ownedAlert(ctx, callerID, id)
	if err != nil {
		metrics.RecordAlertOperation("delete", outcome(err))
		return err
	}

	if err := s.alertRepo.Delete(ctx, id); err != nil {
		err = storageError("delete alert", err)
		metrics.RecordAlertOperation("delete", outcome(err))
		return err
	}

	if alert.MediaRef != "" {
		s.removeMedia(ctx, alert.MediaRef)
	}

	metrics.RecordAlertOperation("delete", outcome(nil))
	return nil
}

// ownedAlert loads an alert and checks that callerID may mutate it.
func (s *AlertService) ownedAlert(ctx context.Context, callerID, id string) (*models.Alert, error) {
	alert, err := s.alertRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError("get alert", err)
	}
	if err := requireOwner(callerID, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// requireOwner is the only access-control predicate for mutations.
func requireOwner(callerID string, alert *models.Alert) error {
	if callerID == "" || alert.OwnerID != callerID {
		return ErrNotAlertOwner
	}
	return nil
}

// removeMedia runs after the record change has been committed, so failures
// are logged and swallowed.
func (s *AlertService) removeMedia(ctx context.Context, ref string) {
	if s.media == nil {
		return
	}
	if err := s.media.Delete(context.WithoutCancel(ctx), ref); err != nil {
		s.logger.Warn().Err(err).Str("media_ref", ref).Msg("failed to remove media")
	}
}

func presentText(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func nonNil(alerts []*models.Alert) []*models.Alert {
	if alerts == nil {
		return []*models.Alert{}
	}
	return alerts
}

func outcome(err error) string {
	var validationErr *ValidationError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &validationErr):
		return "invalid"
	case errors.Is(err, ErrAlertNotFound):
		return "not_found"
	case errors.Is(err, ErrNotAlertOwner):
		return "forbidden"
	default:
		return "error"
	}
}
