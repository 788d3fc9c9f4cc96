package crm

import (
	"context"
	"errors"
	"fmt"

	"github.com/maane-ai/assist-service/internal/domain"
	"github.com/maane-ai/assist-service/internal/repository"
	"github.com/maane-ai/assist-service/pkg/logger"
	"go.uber.org/zap"
)

// Service owns lead capture and funnel management.
type Service struct {
	repos repository.RepositoryManager
}

// NewService creates the CRM service.
func NewService(repos repository.RepositoryManager) *Service {
	return &Service{repos: repos}
}

// CaptureInbound registers or refreshes the lead behind an inbound contact
// and returns it. New leads start in the "new" status with the channel as
// source.
func (s *Service) CaptureInbound(ctx context.Context, tenantID, phone, name string, channel domain.Channel) (*domain.Lead, error) {
	lead, err := s.repos.Lead().UpsertByPhone(ctx, tenantID, &domain.UpsertLeadRequest{
		Phone:  phone,
		Name:   name,
		Source: string(channel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture lead: %w", err)
	}
	return lead, nil
}

// MarkContacted moves a new lead to contacted. Safe to call repeatedly;
// leads already past "new" are left alone.
func (s *Service) MarkContacted(ctx context.Context, leadID string) error {
	lead, err := s.repos.Lead().GetByID(ctx, leadID)
	if err != nil {
		return err
	}
	if lead.Status != domain.LeadStatusNew {
		return nil
	}
	if _, err := s.repos.Lead().UpdateStatus(ctx, leadID, domain.LeadStatusContacted); err != nil {
		return err
	}
	return nil
}

// Transition moves a lead along the funnel, enforcing the allowed moves.
func (s *Service) Transition(ctx context.Context, leadID string, status domain.LeadStatus) (*domain.Lead, error) {
	lead, err := s.repos.Lead().UpdateStatus(ctx, leadID, status)
	if err != nil {
		return nil, err
	}
	logger.Base().Info("lead status changed",
		zap.String("lead_id", leadID),
		zap.String("status", string(status)))
	return lead, nil
}

// AddNote appends a note to the lead record.
func (s *Service) AddNote(ctx context.Context, leadID, note string) error {
	if note == "" {
		return errors.New("note is empty")
	}
	return s.repos.Lead().AppendNote(ctx, leadID, note)
}

// List returns a tenant's leads with optional filtering.
func (s *Service) List(ctx context.Context, tenantID string, filter *domain.LeadFilter) ([]*domain.Lead, error) {
	return s.repos.Lead().List(ctx, tenantID, filter)
}

// Get returns one lead.
func (s *Service) Get(ctx context.Context, leadID string) (*domain.Lead, error) {
	return s.repos.Lead().GetByID(ctx, leadID)
}
