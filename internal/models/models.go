package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles a user may hold.
const (
	RoleAdmin     = "admin"
	RoleSuperUser = "super-user"
	RoleUser      = "user"
)

// Genders accepted for a product.
var Genders = []string{"men", "women", "kid", "unisex"}

type User struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	FullName  string    `gorm:"not null" json:"fullName"`
	IsActive  bool      `gorm:"not null;default:true" json:"isActive"`
	Roles     []string  `gorm:"serializer:json" json:"roles"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if len(u.Roles) == 0 {
		u.Roles = []string{RoleUser}
	}
	return nil
}

// BeforeSave runs for both inserts and updates.
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = NormalizeEmail(u.Email)
	return nil
}

// HasAnyRole reports whether the user holds one of roles.
func (u *User) HasAnyRole(roles ...string) bool {
	for _, have := range u.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

type Product struct {
	ID          string         `gorm:"primaryKey;type:text" json:"id"`
	Title       string         `gorm:"uniqueIndex;not null" json:"title"`
	Price       float64        `gorm:"not null;default:0" json:"price"`
	Description *string        `json:"description"`
	Slug        string         `gorm:"uniqueIndex;not null" json:"slug"`
	Stock       int            `gorm:"not null;default:0" json:"stock"`
	Sizes       []string       `gorm:"serializer:json" json:"sizes"`
	Gender      string         `gorm:"not null" json:"gender"`
	Tags        []string       `gorm:"serializer:json" json:"tags"`
	Images      []ProductImage `gorm:"constraint:OnDelete:CASCADE" json:"images"`
	UserID      *string        `json:"-"`
	User        *User          `json:"user,omitempty"`
	CreatedAt   time.Time      `json:"-"`
	UpdatedAt   time.Time      `json:"-"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return nil
}

// BeforeSave runs ahead of BeforeCreate, so the slug default lives here.
func (p *Product) BeforeSave(tx *gorm.DB) error {
	if p.Slug == "" {
		p.Slug = p.Title
	}
	p.Slug = Slugify(p.Slug)
	return nil
}

// ImageURLs flattens the image rows to their URLs.
func (p *Product) ImageURLs() []string {
	urls := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		urls = append(urls, img.URL)
	}
	return urls
}

type ProductImage struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	URL       string `gorm:"not null" json:"url"`
	ProductID string `gorm:"index;not null" json:"-"`
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Slugify lowercases s, turns spaces into underscores and drops apostrophes.
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, "'", "")
}

// ValidGender reports whether g is one of Genders.
func ValidGender(g string) bool {
	for _, v := range Genders {
		if v == g {
			return true
		}
	}
	return false
}
