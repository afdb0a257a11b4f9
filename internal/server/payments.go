package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	paymentdomain "github.com/supa-modo/mwukenya-server-sub002/internal/payment/domain"
)

type initiatePaymentRequest struct {
	MemberID      string `json:"member_id"`
	TargetID      string `json:"target_id"`
	Amount        int64  `json:"amount"`
	Phone         string `json:"phone"`
	Method        string `json:"method"`
	RequestedDays int    `json:"requested_days"`
	Description   string `json:"description"`
}

type completePaymentRequest struct {
	ReceiptNumber string `json:"receipt_number"`
	TransactionID string `json:"transaction_id"`
}

type failPaymentRequest struct {
	Reason string `json:"reason"`
}

type verifyPaymentRequest struct {
	ReceiptNumber string `json:"receipt_number"`
}

func (s *Server) InitiatePayment(c *gin.Context) {
	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	memberID, err := parseID(req.MemberID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	// target_id is optional for renewals; the active subscription wins.
	var targetID snowflake.ID
	if strings.TrimSpace(req.TargetID) != "" {
		targetID, err = parseID(req.TargetID)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	resp, err := s.paymentSvc.Initiate(c.Request.Context(), paymentdomain.InitiateRequest{
		MemberID:      memberID,
		TargetID:      targetID,
		Amount:        req.Amount,
		Phone:         req.Phone,
		Method:        paymentdomain.PaymentMethod(strings.TrimSpace(req.Method)),
		RequestedDays: req.RequestedDays,
		Description:   req.Description,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPayment(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	record, err := s.paymentSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) CompletePayment(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req completePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	record, err := s.paymentSvc.Complete(c.Request.Context(), id, req.ReceiptNumber, req.TransactionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) FailPayment(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req failPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		req.Reason = "failed by operator"
	}

	if err := s.paymentSvc.Fail(c.Request.Context(), id, req.Reason); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": paymentdomain.PaymentStatusFailed}})
}

func (s *Server) QueryPaymentGatewayStatus(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	status, err := s.paymentSvc.QueryGatewayStatus(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": status})
}

func (s *Server) VerifyPaymentReceipt(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if strings.TrimSpace(req.ReceiptNumber) == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	record, err := s.paymentSvc.VerifyByReceipt(c.Request.Context(), id, req.ReceiptNumber)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) ListSettlementPayments(c *gin.Context) {
	date, err := time.Parse("2006-01-02", strings.TrimSpace(c.Param("date")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	records, err := s.paymentSvc.ListBySettlementDate(c.Request.Context(), date)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var totalAmount, totalDelegate, totalCoordinator, totalSHA, totalOrg int64
	for _, record := range records {
		totalAmount += record.Amount
		totalDelegate += record.DelegateCommission
		totalCoordinator += record.CoordinatorCommission
		totalSHA += record.SHAPortion
		totalOrg += record.OrgPortion
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"date":     date.Format("2006-01-02"),
			"payments": records,
			"totals": gin.H{
				"amount":                 totalAmount,
				"delegate_commission":    totalDelegate,
				"coordinator_commission": totalCoordinator,
				"sha_portion":            totalSHA,
				"org_portion":            totalOrg,
			},
		},
	})
}

func parseID(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(raw))
}
