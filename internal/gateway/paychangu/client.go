package paychangu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

type Config struct {
	BaseURL       string `json:"baseUrl" mapstructure:"base_url"`
	SecretKey     string `json:"secretKey" mapstructure:"secret_key"`
	WebhookSecret string `json:"webhookSecret" mapstructure:"webhook_secret"`
	CallbackURL   string `json:"callbackUrl" mapstructure:"callback_url"`

	// PubNub relay the webhook forwarder publishes confirmations on, so the
	// backend hears about settled charges even when the buyer never returns
	// to the app.
	PNSubKey    string `json:"pn_subkey" mapstructure:"pn_subkey"`
	PNSubSecret string `json:"pn_subsecret" mapstructure:"pn_subsecret"`
	PNUUID      string `json:"pn_uuid" mapstructure:"pn_uuid"`
	PNChannel   string `json:"pn_channel" mapstructure:"pn_channel"`
}

// Client is the raw HTTP client for the PayChangu API. Authentication is a
// static bearer secret, no token refresh dance.
type Client struct {
	baseURL   string
	secretKey string

	hc *http.Client
}

func newClient(c *Config) *Client {
	return &Client{
		baseURL:   c.BaseURL,
		secretKey: c.SecretKey,

		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, reply any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("paychangu: marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	base, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("paychangu: bad base url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, base.String()+path, bodyReader)
	if err != nil {
		return fmt.Errorf("paychangu: http.NewReq: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("paychangu: http.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("paychangu: %s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}

	if reply == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(reply); err != nil {
		return fmt.Errorf("paychangu: json.Decode: %w", err)
	}
	return nil
}
