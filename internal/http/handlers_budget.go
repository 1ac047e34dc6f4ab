package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleGetBudget(c *gin.Context) {
	amount, ok, err := s.svc.Budget.Get(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	resp := budgetResponse{Set: ok}
	if ok {
		resp.Amount = &amount
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSetBudget(c *gin.Context) {
	var req budgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badRequest("invalid budget body: %v", err))
		return
	}
	if err := s.svc.Budget.Set(c.Request.Context(), req.Amount); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, budgetResponse{Amount: &req.Amount, Set: true})
}

func (s *Server) handleClearBudget(c *gin.Context) {
	if err := s.svc.Budget.Clear(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
