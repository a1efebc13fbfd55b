// Package certificates answers lookups against the current record set and
// renders documents for them.
package certificates

import (
	"context"
	"errors"
	"fmt"

	"certificatePortal/internal/auth"
	"certificatePortal/internal/common"
	"certificatePortal/internal/logging"
	"certificatePortal/internal/render"
	"certificatePortal/models"
	"certificatePortal/repository"
)

var (
	// ErrNoData means no records have been ingested yet.
	ErrNoData = errors.New("no data")
	// ErrNoRecord means the records exist but none matches the name.
	ErrNoRecord = errors.New("no record")
)

const noDataMessage = "No data available. Please contact admin to upload student data."

// Status summarizes what the portal can currently serve.
type Status struct {
	RecordCount int
	Template    models.Template
	Message     string
}

// Service looks up records and generates certificates.
type Service struct {
	records  repository.RecordStore
	registry *render.Registry
	log      logging.Logger
}

func NewService(records repository.RecordStore, registry *render.Registry, log logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{records: records, registry: registry, log: log.With("component", "certificates")}
}

// FindByName returns the first record whose name equals name exactly.
func (s *Service) FindByName(ctx context.Context, name string) (*models.Record, error) {
	rec, err := s.records.FindByName(ctx, name)
	if err != nil {
		return nil, common.Wrap(common.ErrStore, err, "Error searching records")
	}
	if rec != nil {
		return rec, nil
	}
	n, err := s.records.Count(ctx)
	if err != nil {
		return nil, common.Wrap(common.ErrStore, err, "Error searching records")
	}
	if n == 0 {
		return nil, &common.Error{Kind: common.ErrNotFound, Message: noDataMessage, Err: ErrNoData}
	}
	return nil, &common.Error{Kind: common.ErrNotFound, Message: fmt.Sprintf("No record found for %q", name), Err: ErrNoRecord}
}

// GenerateDocument renders the certificate for name with the layout that is
// active at call time.
func (s *Service) GenerateDocument(ctx context.Context, name string, claims *auth.Claims) ([]byte, models.Template, error) {
	if claims == nil {
		return nil, "", common.Errorf(common.ErrUnauthorized, "Access denied. No token provided.")
	}
	rec, err := s.FindByName(ctx, name)
	if err != nil {
		return nil, "", err
	}
	tmpl, err := s.registry.GetActive(ctx)
	if err != nil {
		return nil, "", err
	}
	doc, err := s.registry.Render(*rec, tmpl)
	if err != nil {
		return nil, "", err
	}
	s.log.Info(ctx, "certificate generated", "name", rec.Name, "template", tmpl, "by", claims.Username)
	return doc, tmpl, nil
}

// Status reports the record count and active layout.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	n, err := s.records.Count(ctx)
	if err != nil {
		return nil, common.Wrap(common.ErrStore, err, "Error checking status")
	}
	tmpl, err := s.registry.GetActive(ctx)
	if err != nil {
		return nil, common.Wrap(common.ErrStore, err, "Error checking status")
	}
	msg := "Database ready"
	if n == 0 {
		msg = "No data uploaded yet"
	}
	return &Status{RecordCount: n, Template: tmpl, Message: msg}, nil
}
