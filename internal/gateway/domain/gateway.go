// Package domain defines the mobile-money capability the payment core
// consumes. The wire protocol stays behind this interface; the client
// handle is injected, never a process-wide singleton.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// PushRequest asks the gateway to prompt the payer's phone for amount.
type PushRequest struct {
	Phone       string
	Amount      int64
	MemberID    snowflake.ID
	AccountRef  string
	Description string
}

// PushResult is the gateway's acknowledgement of an initiated push.
type PushResult struct {
	CorrelationID   string
	CustomerMessage string
}

// StatusResult reports the fate of a previously initiated push.
type StatusResult struct {
	IsComplete    bool
	IsSuccessful  bool
	Description   string
	TransactionID string
}

// ReceiptVerification is the result of a manual receipt lookup.
type ReceiptVerification struct {
	IsValid       bool
	Amount        int64
	Phone         string
	TransactionID string
	Description   string
}

type Gateway interface {
	InitiatePush(ctx context.Context, req PushRequest) (*PushResult, error)
	QueryStatus(ctx context.Context, correlationID string) (*StatusResult, error)
	VerifyReceipt(ctx context.Context, receiptID string, expectedAmount int64, expectedPhone string) (*ReceiptVerification, error)
}

var (
	ErrGatewayUnavailable = errors.New("gateway_unavailable")
	ErrGatewayRejected    = errors.New("gateway_rejected")
)
