package api

import (
	"net/http"

	"teslo/internal/files"

	"github.com/gin-gonic/gin"
)

func (s *Server) uploadProductImage(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		s.fail(c, files.ErrNotImage)
		return
	}
	f, err := header.Open()
	if err != nil {
		s.fail(c, err)
		return
	}
	defer f.Close()

	name, err := s.uploads.Save(f, header.Header.Get("Content-Type"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"fileName": s.uploads.URL(name)})
}

func (s *Server) productImage(c *gin.Context) {
	path, err := s.uploads.Path(c.Param("imageName"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.File(path)
}
