package api

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "teslo/internal/errors"
	"teslo/internal/models"
	"teslo/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type createProductInput struct {
	Title       string   `json:"title" binding:"required,min=1"`
	Price       float64  `json:"price" binding:"omitempty,gt=0"`
	Description *string  `json:"description"`
	Slug        string   `json:"slug"`
	Stock       int      `json:"stock" binding:"omitempty,gt=0"`
	Sizes       []string `json:"sizes" binding:"required"`
	Gender      string   `json:"gender" binding:"required,oneof=men women kid unisex"`
	Tags        []string `json:"tags"`
	Images      []string `json:"images"`
}

type paginationQuery struct {
	Limit  int `form:"limit" binding:"omitempty,gt=0"`
	Offset int `form:"offset" binding:"omitempty,gte=0"`
}

const defaultLimit = 10

// productView is a product with its images flattened to URLs.
type productView struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Price       float64      `json:"price"`
	Description *string      `json:"description"`
	Slug        string       `json:"slug"`
	Stock       int          `json:"stock"`
	Sizes       []string     `json:"sizes"`
	Gender      string       `json:"gender"`
	Tags        []string     `json:"tags"`
	Images      []string     `json:"images"`
	User        *models.User `json:"user,omitempty"`
}

func viewOf(p *models.Product) productView {
	return productView{
		ID:          p.ID,
		Title:       p.Title,
		Price:       p.Price,
		Description: p.Description,
		Slug:        p.Slug,
		Stock:       p.Stock,
		Sizes:       nonNil(p.Sizes),
		Gender:      p.Gender,
		Tags:        nonNil(p.Tags),
		Images:      p.ImageURLs(),
		User:        p.User,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func productNotFound(err error, term string) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.Public(apperrors.ErrNotFound, fmt.Sprintf("Product with %q not found", term))
	}
	return err
}

func invalidID(id string) error {
	if uuid.Validate(id) != nil {
		return apperrors.Public(apperrors.ErrInvalidInput, "Validation failed (uuid is expected)")
	}
	return nil
}

func (s *Server) createProduct(c *gin.Context) {
	var in createProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.fail(c, badRequest(err))
		return
	}

	p := &models.Product{
		Title:       in.Title,
		Price:       in.Price,
		Description: in.Description,
		Slug:        in.Slug,
		Stock:       in.Stock,
		Sizes:       in.Sizes,
		Gender:      in.Gender,
		Tags:        in.Tags,
	}
	if err := s.store.CreateProduct(p, in.Images, currentUser(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(p))
}

func (s *Server) listProducts(c *gin.Context) {
	var q paginationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultLimit
	}

	products, err := s.store.ListProducts(q.Limit, q.Offset)
	if err != nil {
		s.fail(c, err)
		return
	}
	views := make([]productView, 0, len(products))
	for i := range products {
		v := viewOf(&products[i])
		v.User = nil
		views = append(views, v)
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) findProduct(c *gin.Context) {
	term := c.Param("term")
	p, err := s.store.FindProduct(term)
	if err != nil {
		s.fail(c, productNotFound(err, term))
		return
	}
	c.JSON(http.StatusOK, viewOf(p))
}

func (s *Server) updateProduct(c *gin.Context) {
	id := c.Param("id")
	if err := invalidID(id); err != nil {
		s.fail(c, err)
		return
	}
	var patch storage.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		s.fail(c, badRequest(err))
		return
	}

	p, err := s.store.UpdateProduct(id, patch, currentUser(c))
	if err != nil {
		s.fail(c, productNotFound(err, id))
		return
	}
	c.JSON(http.StatusOK, viewOf(p))
}

func (s *Server) deleteProduct(c *gin.Context) {
	id := c.Param("id")
	if err := invalidID(id); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.store.DeleteProduct(id); err != nil {
		s.fail(c, productNotFound(err, id))
		return
	}
	c.Status(http.StatusOK)
}
