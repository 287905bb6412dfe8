package gateways

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/nppfbt/ndi-verifier/internal/core/domain"
	"github.com/nppfbt/ndi-verifier/internal/core/ports"
	"github.com/nppfbt/ndi-verifier/internal/http"
)

// ErrAccountNotFound is returned when the pensioner service answers without a
// usable account record.
var ErrAccountNotFound = errors.New("pensioner account not found")

type pensionerReply struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
	Data    *struct {
		UserStatus    json.Number `json:"userStatus"`
		PensionStatus string      `json:"pensionStatus"`
		// The backend has shipped this field name misspelled; accept both.
		PentionStatus string `json:"pentionStatus"`
	} `json:"data"`
}

type validateRequest struct {
	CID       string `json:"cid"`
	CIDNumber string `json:"cidNumber"`
}

type livelinessRequest struct {
	PensionID        string `json:"pensionId"`
	CIDNumber        string `json:"cidNumber"`
	LivelinessStatus string `json:"livelinessStatus"`
}

// PensionerClient resolves identity numbers against the pensioner account
// service. The service is a black box collaborator outside the verification
// core.
type PensionerClient struct {
	conn    *http.Client
	baseURL string
}

// NewPensionerClient creates a pensioner gateway over the given http client
func NewPensionerClient(conn *http.Client, baseURL string) ports.PensionerGateway {
	return &PensionerClient{conn: conn, baseURL: baseURL}
}

// Pensioner fetches the account linked to the identity number
func (c *PensionerClient) Pensioner(ctx context.Context, cid string) (*domain.PensionerAccount, error) {
	resp, err := c.conn.Get(ctx, c.baseURL+"/pensioner/"+cid)
	if err != nil {
		return nil, errors.Wrap(err, "fetching pensioner account")
	}
	return parseAccount(resp, cid)
}

// Validate is the fallback account lookup
func (c *PensionerClient) Validate(ctx context.Context, cid string) (*domain.PensionerAccount, error) {
	body, err := json.Marshal(validateRequest{CID: cid, CIDNumber: cid})
	if err != nil {
		return nil, err
	}
	resp, err := c.conn.Post(ctx, c.baseURL+"/pensioner/validate", body)
	if err != nil {
		return nil, errors.Wrap(err, "validating pensioner account")
	}
	return parseAccount(resp, cid)
}

// Liveliness reports the liveness check result
func (c *PensionerClient) Liveliness(ctx context.Context, pensionID, cid, status string) error {
	body, err := json.Marshal(livelinessRequest{
		PensionID:        pensionID,
		CIDNumber:        cid,
		LivelinessStatus: status,
	})
	if err != nil {
		return err
	}

	resp, err := c.conn.Post(ctx, c.baseURL+"/liveliness", body)
	if err != nil {
		return errors.Wrap(err, "reporting liveliness")
	}

	var reply pensionerReply
	if err := json.Unmarshal(resp, &reply); err != nil {
		return errors.Wrap(err, "decoding liveliness response")
	}
	if !reply.Status {
		if reply.Message != "" {
			return errors.New(reply.Message)
		}
		return errors.New("liveliness verification failed")
	}
	return nil
}

func parseAccount(resp []byte, cid string) (*domain.PensionerAccount, error) {
	var reply pensionerReply
	if err := json.Unmarshal(resp, &reply); err != nil {
		return nil, errors.Wrap(err, "decoding pensioner response")
	}
	if !reply.Status || reply.Data == nil {
		return nil, ErrAccountNotFound
	}

	userStatus, err := reply.Data.UserStatus.Int64()
	if err != nil {
		return nil, ErrAccountNotFound
	}

	pensionStatus := reply.Data.PensionStatus
	if pensionStatus == "" {
		pensionStatus = reply.Data.PentionStatus
	}

	return &domain.PensionerAccount{
		CID:           cid,
		UserStatus:    int(userStatus),
		PensionStatus: pensionStatus,
	}, nil
}
