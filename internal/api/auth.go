package api

import (
	"net/http"

	"teslo/internal/auth"

	"github.com/gin-gonic/gin"
)

func (s *Server) register(c *gin.Context) {
	var in auth.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	res, err := s.auth.Register(in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) login(c *gin.Context) {
	var in auth.LoginInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	res, err := s.auth.Login(in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) checkStatus(c *gin.Context) {
	res, err := s.auth.CheckStatus(currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) private(c *gin.Context) {
	user := currentUser(c)

	// Header names and values flattened into one list.
	raw := make([]string, 0, len(c.Request.Header)*2)
	for name, values := range c.Request.Header {
		for _, v := range values {
			raw = append(raw, name, v)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"msg":        "This is a private route",
		"user":       user,
		"userEmail":  user.Email,
		"rawHeaders": raw,
	})
}

func (s *Server) privateWithRole(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"msg":  "This is a private route",
		"user": currentUser(c),
	})
}
