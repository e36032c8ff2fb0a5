package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/skuld/internal/domain"
)

// CustomerStore implements domain.CustomerDirectory against the deployment's
// customer table. The catalog is owned by another system; this store only
// resolves snapshot fields for template creation and generation.
type CustomerStore struct {
	pool *pgxpool.Pool
}

// Compile-time check that CustomerStore implements domain.CustomerDirectory.
var _ domain.CustomerDirectory = (*CustomerStore)(nil)

// NewCustomerStore creates a PostgreSQL-backed customer directory.
func NewCustomerStore(pool *pgxpool.Pool) *CustomerStore {
	return &CustomerStore{pool: pool}
}

// Lookup resolves a customer reference within the tenant.
func (s *CustomerStore) Lookup(ctx context.Context, tenantID, id uuid.UUID) (*domain.Customer, error) {
	const query = `
	SELECT id, tenant_id, name, email, phone, address, tax_id
	FROM customers
	WHERE id = $1 AND tenant_id = $2
	`

	var c domain.Customer
	err := s.pool.QueryRow(ctx, query, id, tenantID).Scan(
		&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.TaxID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, domain.Internal(err, "customer.lookup", "failed to look up customer")
	}
	return &c, nil
}
