package storage

import "teslo/internal/models"

// Store defines the interface for data persistence operations.
// Handlers depend on it so tests can swap in a throwaway SQLite file.
type Store interface {
	// User operations
	CreateUser(user *models.User) error
	GetUserByID(id string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	UpdateUser(user *models.User) error
	DeleteAllUsers() error

	// Product operations
	CreateProduct(product *models.Product, images []string, owner *models.User) error
	ListProducts(limit, offset int) ([]models.Product, error)
	FindProduct(term string) (*models.Product, error)
	UpdateProduct(id string, patch ProductPatch, owner *models.User) (*models.Product, error)
	DeleteProduct(term string) error
	DeleteAllProducts() error

	// Transaction support
	WithTx(fn func(tx Store) error) error

	// Lifecycle
	Close() error
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)

// ProductPatch carries the fields of a partial product update. Nil means
// "leave as is"; a non-nil empty Images slice removes every image.
type ProductPatch struct {
	Title       *string  `json:"title" binding:"omitempty,min=1"`
	Price       *float64 `json:"price" binding:"omitempty,gt=0"`
	Description *string  `json:"description"`
	Slug        *string  `json:"slug" binding:"omitempty,min=1"`
	Stock       *int     `json:"stock" binding:"omitempty,gt=0"`
	Sizes       []string `json:"sizes"`
	Gender      *string  `json:"gender" binding:"omitempty,oneof=men women kid unisex"`
	Tags        []string `json:"tags"`
	Images      []string `json:"images"`
}

func (p ProductPatch) apply(prod *models.Product) {
	if p.Title != nil {
		prod.Title = *p.Title
	}
	if p.Price != nil {
		prod.Price = *p.Price
	}
	if p.Description != nil {
		prod.Description = p.Description
	}
	if p.Slug != nil {
		prod.Slug = *p.Slug
	}
	if p.Stock != nil {
		prod.Stock = *p.Stock
	}
	if p.Sizes != nil {
		prod.Sizes = p.Sizes
	}
	if p.Gender != nil {
		prod.Gender = *p.Gender
	}
	if p.Tags != nil {
		prod.Tags = p.Tags
	}
}
