package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spendwise/internal/core"
)

func (s *Server) bindTransaction(c *gin.Context) (core.Transaction, bool) {
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badRequest("invalid transaction body: %v", err))
		return core.Transaction{}, false
	}
	tx, err := req.toCore(s.now(), s.svc.Ledger.Location())
	if err != nil {
		writeError(c, err)
		return core.Transaction{}, false
	}
	return tx, true
}

func (s *Server) handleCreateTransaction(c *gin.Context) {
	tx, ok := s.bindTransaction(c)
	if !ok {
		return
	}
	created, err := s.svc.Ledger.Add(c.Request.Context(), tx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTransactionResponse(created, s.svc.Ledger.Location()))
}

// handleListTransactions returns the whole ledger, or one month when year or
// month is given.
func (s *Server) handleListTransactions(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		txs []core.Transaction
		err error
	)
	if c.Query("year") == "" && c.Query("month") == "" {
		txs, err = s.svc.Ledger.List(ctx)
	} else {
		var p core.Period
		if p, err = parsePeriod(c, s.now(), s.svc.Ledger.Location()); err == nil {
			txs, err = s.svc.Ledger.ListPeriod(ctx, p)
		}
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": newTransactionList(txs, s.svc.Ledger.Location())})
}

func (s *Server) handleGetTransaction(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		writeError(c, err)
		return
	}
	tx, err := s.svc.Ledger.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTransactionResponse(tx, s.svc.Ledger.Location()))
}

func (s *Server) handleUpdateTransaction(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		writeError(c, err)
		return
	}
	tx, ok := s.bindTransaction(c)
	if !ok {
		return
	}
	tx.ID = id
	updated, err := s.svc.Ledger.Update(c.Request.Context(), tx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTransactionResponse(updated, s.svc.Ledger.Location()))
}

func (s *Server) handleDeleteTransaction(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.svc.Ledger.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
