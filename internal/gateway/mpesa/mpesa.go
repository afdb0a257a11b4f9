// Package mpesa implements the mobile-money gateway capability against a
// Daraja-style STK-push API.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/supa-modo/mwukenya-server-sub002/internal/config"
	"github.com/supa-modo/mwukenya-server-sub002/internal/gateway/domain"
)

type Client struct {
	cfg  config.MpesaConfig
	http *http.Client
	log  *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(cfg config.MpesaConfig, log *zap.Logger) *Client {
	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  log.Named("gateway.mpesa"),
	}
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            string `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorMessage        string `json:"errorMessage"`
}

func (c *Client) InitiatePush(ctx context.Context, req domain.PushRequest) (*domain.PushResult, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().UTC().Format("20060102150405")
	body := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          c.password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		// Daraja expects whole shillings.
		Amount:           strconv.FormatInt(req.Amount/100, 10),
		PartyA:           req.Phone,
		PartyB:           c.cfg.ShortCode,
		PhoneNumber:      req.Phone,
		CallBackURL:      c.cfg.CallbackURL,
		AccountReference: req.AccountRef,
		TransactionDesc:  req.Description,
	}

	var resp stkPushResponse
	if err := c.post(ctx, token, "/mpesa/stkpush/v1/processrequest", body, &resp); err != nil {
		return nil, err
	}
	if resp.ResponseCode != "0" {
		c.log.Warn("stk push rejected",
			zap.String("response_code", resp.ResponseCode),
			zap.String("description", resp.ResponseDescription),
			zap.String("error", resp.ErrorMessage),
		)
		return nil, domain.ErrGatewayRejected
	}

	return &domain.PushResult{
		CorrelationID:   resp.CheckoutRequestID,
		CustomerMessage: resp.CustomerMessage,
	}, nil
}

type stkQueryResponse struct {
	ResponseCode      string `json:"ResponseCode"`
	ResultCode        string `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	MpesaReceiptNum   string `json:"MpesaReceiptNumber"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

func (c *Client) QueryStatus(ctx context.Context, correlationID string) (*domain.StatusResult, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().UTC().Format("20060102150405")
	body := map[string]string{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          c.password(timestamp),
		"Timestamp":         timestamp,
		"CheckoutRequestID": correlationID,
	}

	var resp stkQueryResponse
	if err := c.post(ctx, token, "/mpesa/stkpushquery/v1/query", body, &resp); err != nil {
		return nil, err
	}

	// ResultCode is only present once the push has been resolved; an
	// in-flight push answers with a pending response code instead.
	if resp.ResultCode == "" {
		return &domain.StatusResult{IsComplete: false, Description: resp.ResultDesc}, nil
	}
	return &domain.StatusResult{
		IsComplete:    true,
		IsSuccessful:  resp.ResultCode == "0",
		Description:   resp.ResultDesc,
		TransactionID: resp.MpesaReceiptNum,
	}, nil
}

type receiptQueryResponse struct {
	ResultCode    string `json:"ResultCode"`
	ResultDesc    string `json:"ResultDesc"`
	Amount        string `json:"Amount"`
	PhoneNumber   string `json:"PhoneNumber"`
	TransactionID string `json:"TransactionID"`
}

func (c *Client) VerifyReceipt(ctx context.Context, receiptID string, expectedAmount int64, expectedPhone string) (*domain.ReceiptVerification, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]string{
		"TransactionID":     receiptID,
		"PartyA":            expectedPhone,
		"IdentifierType":    "1",
		"BusinessShortCode": c.cfg.ShortCode,
	}

	var resp receiptQueryResponse
	if err := c.post(ctx, token, "/mpesa/transactionstatus/v1/query", body, &resp); err != nil {
		return nil, err
	}
	if resp.ResultCode != "0" {
		return &domain.ReceiptVerification{IsValid: false, Description: resp.ResultDesc}, nil
	}

	amount, _ := strconv.ParseFloat(resp.Amount, 64)
	amountCents := int64(amount * 100)
	valid := amountCents == expectedAmount && resp.PhoneNumber == expectedPhone
	return &domain.ReceiptVerification{
		IsValid:       valid,
		Amount:        amountCents,
		Phone:         resp.PhoneNumber,
		TransactionID: resp.TransactionID,
		Description:   resp.ResultDesc,
	}, nil
}

func (c *Client) password(timestamp string) string {
	raw := c.cfg.ShortCode + c.cfg.Passkey + timestamp
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", domain.ErrGatewayUnavailable
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", domain.ErrGatewayUnavailable
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", domain.ErrGatewayUnavailable
	}
	expires, err := strconv.Atoi(tok.ExpiresIn)
	if err != nil || expires <= 0 {
		expires = 3600
	}

	c.accessToken = tok.AccessToken
	// Refresh a minute early so in-flight calls never carry a stale token.
	c.tokenExpiry = time.Now().Add(time.Duration(expires-60) * time.Second)
	return c.accessToken, nil
}

func (c *Client) post(ctx context.Context, token, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return domain.ErrGatewayUnavailable
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("%w: http %d", domain.ErrGatewayRejected, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
