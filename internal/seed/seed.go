// Package seed resets a database to a known set of users and products.
package seed

import (
	_ "embed"
	"errors"
	"fmt"

	"teslo/internal/auth"
	"teslo/internal/logger"
	"teslo/internal/models"
	"teslo/internal/storage"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Done is the message returned after a successful run.
const Done = "Seed executed successfully"

//go:embed data.yaml
var rawData []byte

type Data struct {
	Users    []User    `yaml:"users"`
	Products []Product `yaml:"products"`
}

type User struct {
	Email    string   `yaml:"email"`
	FullName string   `yaml:"fullName"`
	Password string   `yaml:"password"`
	Roles    []string `yaml:"roles"`
}

type Product struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Price       float64  `yaml:"price"`
	Stock       int      `yaml:"stock"`
	Sizes       []string `yaml:"sizes"`
	Gender      string   `yaml:"gender"`
	Tags        []string `yaml:"tags"`
	Slug        string   `yaml:"slug"`
	Images      []string `yaml:"images"`
}

// Load parses the embedded seed data.
func Load() (*Data, error) {
	var d Data
	if err := yaml.Unmarshal(rawData, &d); err != nil {
		return nil, fmt.Errorf("seed: parse data: %w", err)
	}
	if len(d.Users) == 0 {
		return nil, errors.New("seed: no users")
	}
	return &d, nil
}

// Run wipes products and users and inserts the seed data in a single
// transaction.
func Run(store storage.Store, data *Data) error {
	log := logger.Named("seed")

	return store.WithTx(func(tx storage.Store) error {
		if err := tx.DeleteAllUsers(); err != nil {
			return err
		}

		var owner *models.User
		for _, su := range data.Users {
			hash, err := auth.HashPassword(su.Password)
			if err != nil {
				return fmt.Errorf("seed: hash password: %w", err)
			}
			u := &models.User{
				Email:    su.Email,
				Password: hash,
				FullName: su.FullName,
				IsActive: true,
				Roles:    su.Roles,
			}
			if err := tx.CreateUser(u); err != nil {
				return err
			}
			if owner == nil {
				owner = u
			}
		}

		for _, sp := range data.Products {
			p := &models.Product{
				Title:  sp.Title,
				Price:  sp.Price,
				Stock:  sp.Stock,
				Sizes:  sp.Sizes,
				Gender: sp.Gender,
				Tags:   sp.Tags,
				Slug:   sp.Slug,
			}
			if sp.Description != "" {
				desc := sp.Description
				p.Description = &desc
			}
			if err := tx.CreateProduct(p, sp.Images, owner); err != nil {
				return err
			}
		}

		log.Info("seed applied",
			zap.Int("users", len(data.Users)),
			zap.Int("products", len(data.Products)),
		)
		return nil
	})
}
