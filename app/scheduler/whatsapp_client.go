package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lorenrocu/whatsapp-campaigns/config"
	"github.com/lorenrocu/whatsapp-campaigns/models"
	"github.com/lorenrocu/whatsapp-campaigns/utils"
)

// SendOutcome classifies a gateway call
type SendOutcome int

const (
	OutcomeOK SendOutcome = iota
	OutcomeTransient
	OutcomeTerminal
	// OutcomeSkipped means no request was made because the task no longer applies
	OutcomeSkipped
)

func (o SendOutcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeTransient:
		return "transient"
	case OutcomeTerminal:
		return "terminal"
	case OutcomeSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ClassifyStatus maps an HTTP status to an outcome: 2xx ok, 4xx terminal, anything else transient
func ClassifyStatus(code int) SendOutcome {
	switch {
	case code >= 200 && code < 300:
		return OutcomeOK
	case code >= 400 && code < 500:
		return OutcomeTerminal
	default:
		return OutcomeTransient
	}
}

// SendResult is what the gateway client reports for one message
type SendResult struct {
	Outcome    SendOutcome
	StatusCode int
	Err        error
}

// WhatsappMessage is one outbound message addressed to a WhatsApp number
type WhatsappMessage struct {
	Number string
	Text   string
	Media  models.Multimedia
}

// WhatsappClient talks to the Evolution-style HTTP gateway
type WhatsappClient interface {
	Send(ctx context.Context, creds models.GatewayCredentials, msg WhatsappMessage) SendResult
}

// BuildRequest returns the endpoint path segment and JSON body for a message
func BuildRequest(msg WhatsappMessage) (string, map[string]any) {
	if !msg.Media.Present() {
		return "sendText", map[string]any{
			"number": msg.Number,
			"text":   msg.Text,
		}
	}

	fileName := msg.Media.Filename
	if strings.TrimSpace(fileName) == "" {
		fileName = "file"
	}
	payload := map[string]any{
		"number":    msg.Number,
		"mediatype": msg.Media.Type,
		"media":     msg.Media.URL,
		"fileName":  fileName,
	}
	if strings.TrimSpace(msg.Media.Mimetype) != "" {
		payload["mimetype"] = msg.Media.Mimetype
	}
	if msg.Media.Type == models.MultimediaTypeImage && strings.TrimSpace(msg.Text) != "" {
		payload["caption"] = msg.Text
	}
	return "sendMedia", payload
}

type httpWhatsappClient struct {
	cfg    config.GatewayConfig
	client *http.Client
}

func newHTTPWhatsappClient(cfg config.GatewayConfig) *httpWhatsappClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = utils.GatewayRequestTimeout
	}
	return &httpWhatsappClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewWhatsappClient returns the HTTP gateway client
func NewWhatsappClient(cfg config.GatewayConfig) WhatsappClient {
	return newHTTPWhatsappClient(cfg)
}

func (c *httpWhatsappClient) Send(ctx context.Context, creds models.GatewayCredentials, msg WhatsappMessage) SendResult {
	if !creds.Complete() {
		return SendResult{Outcome: OutcomeTerminal, Err: errors.New("whatsapp api credentials are incomplete")}
	}

	endpoint, payload := BuildRequest(msg)
	url := fmt.Sprintf("%s/message/%s/%s", strings.TrimRight(creds.BaseURL, "/"), endpoint, creds.InstanceName)

	b, err := json.Marshal(payload)
	if err != nil {
		return SendResult{Outcome: OutcomeTerminal, Err: err}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return SendResult{Outcome: OutcomeTerminal, Err: fmt.Errorf("whatsapp api invalid request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", creds.Token)

	start := time.Now()
	resp, err := c.client.Do(req)
	gatewayLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		return SendResult{Outcome: OutcomeTransient, Err: fmt.Errorf("whatsapp api %s request failed: %w", endpoint, err)}
	}
	defer resp.Body.Close()

	outcome := ClassifyStatus(resp.StatusCode)
	if outcome == OutcomeOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return SendResult{Outcome: OutcomeOK, StatusCode: resp.StatusCode}
	}

	bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	body := strings.TrimSpace(string(bodyBytes))
	if readErr != nil {
		body = fmt.Sprintf("unable to read response body: %v", readErr)
	}
	return SendResult{
		Outcome:    outcome,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("whatsapp api %s http status: %d, body: %s", endpoint, resp.StatusCode, body),
	}
}
