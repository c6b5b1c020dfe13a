package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/target/mmk-console/internal/domain/model"
	apperrors "github.com/target/mmk-console/internal/errors"
)

// ProductsAPI reads the product catalogue.
type ProductsAPI struct {
	doer Doer
}

// NewProductsAPI constructs a ProductsAPI on top of d.
func NewProductsAPI(d Doer) *ProductsAPI {
	return &ProductsAPI{doer: d}
}

// List returns every product.
func (p *ProductsAPI) List(ctx context.Context) ([]model.Product, error) {
	out, err := DoJSON[model.ProductList](ctx, p.doer, Request{Method: http.MethodGet, Path: "/products"})
	if err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Get returns one product by id.
func (p *ProductsAPI) Get(ctx context.Context, id string) (model.Product, error) {
	if id == "" {
		return model.Product{}, apperrors.ValidationField("id", "product id is required")
	}
	return DoJSON[model.Product](ctx, p.doer, Request{Method: http.MethodGet, Path: "/products/" + url.PathEscape(id)})
}
