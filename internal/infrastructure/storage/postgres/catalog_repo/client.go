package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"clinicore/internal/domain/catalogs/client"
	"clinicore/internal/infrastructure/storage/postgres"
)

// ClientRepo implements client.Repository.
type ClientRepo struct {
	*BaseCatalogRepo[*client.Client]
}

var clientColumns = postgres.ExtractDBColumns[client.Client]()

// NewClientRepo creates a new client repository.
func NewClientRepo(txManager *postgres.TxManager) *ClientRepo {
	return &ClientRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			"cat_client",
			clientColumns,
			func() *client.Client { return &client.Client{} },
		),
	}
}

var _ client.Repository = (*ClientRepo)(nil)

// FindByPhone retrieves a client by phone number.
func (r *ClientRepo) FindByPhone(ctx context.Context, phone string) (*client.Client, error) {
	q := r.Builder().
		Select(clientColumns...).
		From("cat_client").
		Where(squirrel.Eq{"phone": phone}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	return r.FindOne(ctx, q)
}
