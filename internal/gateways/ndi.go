package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/nppfbt/ndi-verifier/internal/core/domain"
	"github.com/nppfbt/ndi-verifier/internal/core/ports"
	"github.com/nppfbt/ndi-verifier/internal/deeplink"
	"github.com/nppfbt/ndi-verifier/internal/http"
	"github.com/nppfbt/ndi-verifier/internal/log"
)

// ErrChallengeUnavailable is returned when the proof request response lacks
// the identifier, url, thread-id triple. Fatal to the attempt: the user must
// retry.
var ErrChallengeUnavailable = errors.New("proof request challenge unavailable")

const (
	proofRequestPath         = "/proof-request"
	proofRequestLivenessPath = "/proof-request-liveness"

	webhookAuthType      = "OAUTH2"
	webhookAuthVersion   = "v1"
	webhookAuthTokenMode = "bearer"
)

type proofReply struct {
	Data struct {
		ProofRequestURL      string `json:"proofRequestURL"`
		DeepLinkURL          string `json:"deepLinkURL"`
		ProofRequestThreadID string `json:"proofRequestThreadId"`
	} `json:"data"`
}

type webhookSubscribeRequest struct {
	WebhookID string `json:"webhookId"`
	ThreadID  string `json:"threadId"`
}

type webhookDetailsRequest struct {
	WebhookID         string `json:"webhookId"`
	WebhookURL        string `json:"webhookUrl"`
	AuthType          string `json:"authType"`
	AuthVersion       string `json:"authVersion"`
	AuthTokenMode     string `json:"authTokenMode"`
	RegisterResponse  bool   `json:"registerResponse"`
	SubscribeResponse bool   `json:"subscribeResponse"`
}

// NDIClient talks to the NDI proof request backend
type NDIClient struct {
	conn       *http.Client
	baseURL    string
	returnURL  string
	webhookID  string
	webhookURL string
}

// NewNDIClient creates a proof request gateway over the given http client
func NewNDIClient(conn *http.Client, baseURL, returnURL, webhookID, webhookURL string) ports.ProofRequestGateway {
	return &NDIClient{
		conn:       conn,
		baseURL:    baseURL,
		returnURL:  returnURL,
		webhookID:  webhookID,
		webhookURL: webhookURL,
	}
}

// RequestChallenge asks the backend for a proof request for the flow. The
// return url is embedded both as a request parameter and, if the backend
// supplied deep link lacks one, as a deep link query parameter.
func (c *NDIClient) RequestChallenge(ctx context.Context, flow domain.FlowKind) (*domain.VerificationSession, error) {
	path := proofRequestPath
	if flow == domain.FlowLiveness {
		path = proofRequestLivenessPath
	}
	reqURL := fmt.Sprintf("%s%s?returnUrl=%s", c.baseURL, path, url.QueryEscape(c.returnURL))

	resp, err := c.conn.Get(ctx, reqURL)
	if err != nil {
		return nil, errors.Wrap(err, "requesting proof challenge")
	}

	var reply proofReply
	if err := json.Unmarshal(resp, &reply); err != nil {
		return nil, ErrChallengeUnavailable
	}
	if reply.Data.ProofRequestURL == "" || reply.Data.DeepLinkURL == "" || reply.Data.ProofRequestThreadID == "" {
		return nil, ErrChallengeUnavailable
	}

	return &domain.VerificationSession{
		ThreadID:  reply.Data.ProofRequestThreadID,
		ProofURL:  reply.Data.ProofRequestURL,
		DeepLink:  deeplink.WithReturnURL(reply.Data.DeepLinkURL, c.returnURL),
		FlowKind:  flow,
		State:     domain.StateCreated,
		CreatedAt: time.Now(),
	}, nil
}

// RegisterCallback subscribes the thread to the webhook channel and then sets
// the delivery details. Both steps are idempotent on the backend, so it is
// safe to repeat on every resume. Any failure is non fatal: the polling
// fallback does not require the registration, it only improves reliability.
func (c *NDIClient) RegisterCallback(ctx context.Context, threadID string) bool {
	subscribeBody, err := json.Marshal(webhookSubscribeRequest{
		WebhookID: c.webhookID,
		ThreadID:  threadID,
	})
	if err != nil {
		return false
	}
	if _, err := c.conn.Post(ctx, c.baseURL+"/webhook/subscribe", subscribeBody); err != nil {
		log.Warn(ctx, "webhook subscribe failed, proceeding with polling only", "err", err, "threadID", threadID)
		return false
	}

	detailsBody, err := json.Marshal(webhookDetailsRequest{
		WebhookID:         c.webhookID,
		WebhookURL:        c.webhookURL,
		AuthType:          webhookAuthType,
		AuthVersion:       webhookAuthVersion,
		AuthTokenMode:     webhookAuthTokenMode,
		RegisterResponse:  true,
		SubscribeResponse: true,
	})
	if err != nil {
		return false
	}
	if _, err := c.conn.Put(ctx, c.baseURL+"/webhook-details/"+threadID, detailsBody); err != nil {
		log.Warn(ctx, "webhook details update failed, proceeding with polling only", "err", err, "threadID", threadID)
		return false
	}

	return true
}

// WebhookDetails fetches the backend-held verification result for the thread
func (c *NDIClient) WebhookDetails(ctx context.Context, threadID string) (*domain.WebhookDetails, error) {
	resp, err := c.conn.Get(ctx, c.baseURL+"/webhook-details/"+threadID)
	if err != nil {
		return nil, errors.Wrap(err, "fetching webhook details")
	}

	var details domain.WebhookDetails
	if err := json.Unmarshal(resp, &details); err != nil {
		return nil, errors.Wrap(err, "decoding webhook details")
	}
	return &details, nil
}
