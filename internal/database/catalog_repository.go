package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/servicehub/booking-backend/internal/models"
)

// CatalogRepository reads providers, services, add-ons and clients.
// These tables are owned by provider and account management.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetProviderAccount retrieves a provider by ID. Returns nil, nil if not found.
func (r *CatalogRepository) GetProviderAccount(ctx context.Context, providerID uuid.UUID) (*models.ProviderAccount, error) {
	var provider models.ProviderAccount
	query := `
		SELECT id, display_name, payout_account_id, is_activated, fee_bypass,
		       phone, email, created_at, updated_at
		FROM providers
		WHERE id = $1`

	err := r.db.GetContext(ctx, &provider, query, providerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	return &provider, nil
}

// GetService retrieves a service by ID, active or not. Returns nil, nil if not found.
func (r *CatalogRepository) GetService(ctx context.Context, serviceID uuid.UUID) (*models.Service, error) {
	var service models.Service
	query := `
		SELECT id, provider_id, name, price_cents, is_active, created_at, updated_at
		FROM services
		WHERE id = $1`

	err := r.db.GetContext(ctx, &service, query, serviceID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}

	return &service, nil
}

// GetAddons retrieves the active add-ons of a service among the given IDs.
// Missing IDs are simply absent from the result.
func (r *CatalogRepository) GetAddons(ctx context.Context, serviceID uuid.UUID, addonIDs []uuid.UUID) ([]models.ServiceAddon, error) {
	if len(addonIDs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(addonIDs))
	for i, id := range addonIDs {
		ids[i] = id.String()
	}

	var addons []models.ServiceAddon
	query := `
		SELECT id, service_id, name, price_cents, is_active
		FROM service_addons
		WHERE service_id = $1 AND id = ANY($2::uuid[]) AND is_active = TRUE
		ORDER BY name`

	if err := r.db.SelectContext(ctx, &addons, query, serviceID, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to get service add-ons: %w", err)
	}

	return addons, nil
}

// GetClient retrieves a registered client. Returns nil, nil if not found.
func (r *CatalogRepository) GetClient(ctx context.Context, clientID uuid.UUID) (*models.Client, error) {
	var client models.Client
	query := `SELECT id, full_name, email, phone FROM clients WHERE id = $1`

	err := r.db.GetContext(ctx, &client, query, clientID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return &client, nil
}
