package storage

import (
	"errors"
	"fmt"
	"strings"

	apperrors "teslo/internal/errors"
	"teslo/internal/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// SQLiteStore is the gorm-backed Store.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the database at path and migrates the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}

	s := &SQLiteStore{db: db}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates or updates the tables.
func (s *SQLiteStore) Migrate() error {
	if err := s.db.AutoMigrate(&models.User{}, &models.Product{}, &models.ProductImage{}); err != nil {
		return fmt.Errorf("storage: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn against a store bound to a single transaction. Any error
// returned by fn rolls everything back.
func (s *SQLiteStore) WithTx(fn func(tx Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&SQLiteStore{db: tx})
	})
}

// User operations

func (s *SQLiteStore) CreateUser(user *models.User) error {
	if err := s.db.Create(user).Error; err != nil {
		return fmt.Errorf("create user %s: %w", user.Email, translate(err))
	}
	return nil
}

func (s *SQLiteStore) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("user %s: %w", id, translate(err))
	}
	return &user, nil
}

func (s *SQLiteStore) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "email = ?", models.NormalizeEmail(email)).Error; err != nil {
		return nil, fmt.Errorf("user %s: %w", email, translate(err))
	}
	return &user, nil
}

func (s *SQLiteStore) UpdateUser(user *models.User) error {
	if err := s.db.Save(user).Error; err != nil {
		return fmt.Errorf("update user %s: %w", user.ID, translate(err))
	}
	return nil
}

func (s *SQLiteStore) DeleteAllUsers() error {
	// Products reference users, so drop them first.
	if err := s.DeleteAllProducts(); err != nil {
		return err
	}
	if err := s.db.Where("1 = 1").Delete(&models.User{}).Error; err != nil {
		return fmt.Errorf("delete users: %w", translate(err))
	}
	return nil
}

// Product operations

func (s *SQLiteStore) CreateProduct(product *models.Product, images []string, owner *models.User) error {
	product.Images = toImages(images)
	if owner != nil {
		product.UserID = &owner.ID
	}
	product.User = nil

	if err := s.db.Omit("User").Create(product).Error; err != nil {
		return fmt.Errorf("create product %q: %w", product.Title, translate(err))
	}
	product.User = owner
	return nil
}

func (s *SQLiteStore) ListProducts(limit, offset int) ([]models.Product, error) {
	var products []models.Product
	err := s.db.Preload("Images").
		Order("created_at, id").
		Limit(limit).
		Offset(offset).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("list products: %w", translate(err))
	}
	return products, nil
}

// FindProduct looks a product up by id when term is a UUID, otherwise by
// case-insensitive title or by slug.
func (s *SQLiteStore) FindProduct(term string) (*models.Product, error) {
	q := s.db.Preload("Images").Preload("User")
	if uuid.Validate(term) == nil {
		q = q.Where("id = ?", term)
	} else {
		q = q.Where("UPPER(title) = ? OR slug = ?", strings.ToUpper(term), strings.ToLower(term))
	}

	var product models.Product
	if err := q.First(&product).Error; err != nil {
		return nil, fmt.Errorf("product %s: %w", term, translate(err))
	}
	return &product, nil
}

// UpdateProduct applies patch inside one transaction. When patch.Images is
// set, the existing image rows are deleted and recreated from it.
func (s *SQLiteStore) UpdateProduct(id string, patch ProductPatch, owner *models.User) (*models.Product, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, "id = ?", id).Error; err != nil {
			return fmt.Errorf("product %s: %w", id, translate(err))
		}
		patch.apply(&product)
		if owner != nil {
			product.UserID = &owner.ID
		}

		if patch.Images != nil {
			if err := tx.Where("product_id = ?", id).Delete(&models.ProductImage{}).Error; err != nil {
				return fmt.Errorf("delete images of %s: %w", id, translate(err))
			}
			images := toImages(patch.Images)
			for i := range images {
				images[i].ProductID = id
			}
			if len(images) > 0 {
				if err := tx.Create(&images).Error; err != nil {
					return fmt.Errorf("create images of %s: %w", id, translate(err))
				}
			}
		}

		if err := tx.Omit(clause.Associations).Save(&product).Error; err != nil {
			return fmt.Errorf("update product %s: %w", id, translate(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.FindProduct(id)
}

func (s *SQLiteStore) DeleteProduct(term string) error {
	product, err := s.FindProduct(term)
	if err != nil {
		return err
	}
	if err := s.db.Select("Images").Delete(product).Error; err != nil {
		return fmt.Errorf("delete product %s: %w", product.ID, translate(err))
	}
	return nil
}

func (s *SQLiteStore) DeleteAllProducts() error {
	if err := s.db.Where("1 = 1").Delete(&models.ProductImage{}).Error; err != nil {
		return fmt.Errorf("delete product images: %w", translate(err))
	}
	if err := s.db.Where("1 = 1").Delete(&models.Product{}).Error; err != nil {
		return fmt.Errorf("delete products: %w", translate(err))
	}
	return nil
}

func toImages(urls []string) []models.ProductImage {
	images := make([]models.ProductImage, 0, len(urls))
	for _, u := range urls {
		images = append(images, models.ProductImage{URL: u})
	}
	return images
}

// translate maps driver errors onto the application sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey),
		strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %s", apperrors.ErrDuplicateKey, err.Error())
	default:
		return err
	}
}
