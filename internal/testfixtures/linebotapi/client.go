// Package linebotapi is a self-contained synchronous client for a LINE-style
// messaging API. Every endpoint method builds a request, sends it over a
// blocking HTTP client and parses the response; non-2xx responses become
// *APIError. It stands in for a real messaging SDK when exercising
// generation and parity against local test servers.
package linebotapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// Version is the client version, sent in the User-Agent header.
	Version = "1.4.0"

	DefaultEndpoint     = "https://api.line.me"
	DefaultDataEndpoint = "https://api-data.line.me"
	DefaultTimeout      = 30 * time.Second
)

// Config configures a Client.
type Config struct {
	// ChannelToken authenticates the channel. Required.
	ChannelToken string

	// Endpoint and DataEndpoint override the API hosts. DataEndpoint serves
	// binary content downloads.
	Endpoint     string
	DataEndpoint string

	// Timeout bounds each request. Default: DefaultTimeout.
	Timeout time.Duration
}

// Client is the synchronous API client.
type Client struct {
	channelToken string
	endpoint     string
	dataEndpoint string
	httpClient   *http.Client
}

// New creates a Client, applying endpoint and timeout defaults.
func New(cfg Config) (*Client, error) {
	if cfg.ChannelToken == "" {
		return nil, fmt.Errorf("channel token is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	dataEndpoint := cfg.DataEndpoint
	if dataEndpoint == "" {
		dataEndpoint = DefaultDataEndpoint
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		channelToken: cfg.ChannelToken,
		endpoint:     endpoint,
		dataEndpoint: dataEndpoint,
		httpClient:   &http.Client{Timeout: timeout},
	}, nil
}

// ReplyMessage sends reply messages for a reply token.
func (c *Client) ReplyMessage(replyToken string, messages ...Message) (*BasicResponse, error) {
	return c.post("/v2/bot/message/reply", ReplyRequest{ReplyToken: replyToken, Messages: messages})
}

// PushMessage sends push messages to a user, group or room.
func (c *Client) PushMessage(to string, messages ...Message) (*BasicResponse, error) {
	return c.post("/v2/bot/message/push", PushRequest{To: to, Messages: messages})
}

// BroadcastMessage sends messages to all followers of the channel.
func (c *Client) BroadcastMessage(req BroadcastRequest) (*BasicResponse, error) {
	return c.post("/v2/bot/message/broadcast", req)
}

// GetProfile returns the profile of a user.
func (c *Client) GetProfile(userID string) (*Profile, error) {
	var profile Profile
	if err := c.get(c.endpoint+"/v2/bot/profile/"+userID, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetMessageQuota returns the channel's monthly message quota.
func (c *Client) GetMessageQuota() (*MessageQuota, error) {
	var quota MessageQuota
	if err := c.get(c.endpoint+"/v2/bot/message/quota", &quota); err != nil {
		return nil, err
	}
	return &quota, nil
}

// GetFollowerIDs returns one page of follower user IDs.
func (c *Client) GetFollowerIDs(req FollowerIDsRequest) (*MemberIDs, error) {
	values, err := req.Values()
	if err != nil {
		return nil, err
	}
	target := c.endpoint + "/v2/bot/followers/ids"
	if encoded := values.Encode(); encoded != "" {
		target += "?" + encoded
	}
	var ids MemberIDs
	if err := c.get(target, &ids); err != nil {
		return nil, err
	}
	return &ids, nil
}

// GetMessageContent downloads the binary content of a message. The caller
// owns closing the returned body.
func (c *Client) GetMessageContent(messageID string) (io.ReadCloser, error) {
	resp, err := c.do(http.MethodGet, c.dataEndpoint+"/v2/bot/message/"+messageID+"/content", nil)
	if err != nil {
		return nil, err
	}
	if err := c.checkResponse(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// DeleteRichMenu deletes a rich menu.
func (c *Client) DeleteRichMenu(richMenuID string) error {
	resp, err := c.do(http.MethodDelete, c.endpoint+"/v2/bot/richmenu/"+richMenuID, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkResponse(resp)
}

// post sends a JSON payload and returns the acknowledgement.
func (c *Client) post(path string, payload any) (*BasicResponse, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(http.MethodPost, c.endpoint+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := c.checkResponse(resp); err != nil {
		return nil, err
	}
	return &BasicResponse{RequestID: resp.Header.Get("X-Line-Request-Id")}, nil
}

// get sends a GET request and decodes the JSON response into out.
func (c *Client) get(target string, out any) error {
	resp, err := c.do(http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := c.checkResponse(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// do builds a request with auth headers and sends it over the blocking
// transport.
func (c *Client) do(method, target string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.channelToken)
	req.Header.Set("User-Agent", "linebotapi/"+Version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

// checkResponse maps a non-2xx response into *APIError, consuming the body.
func (c *Client) checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("X-Line-Request-Id"),
		RawBody:    raw,
	}
	var parsed ErrorResponse
	if json.Unmarshal(raw, &parsed) == nil && parsed.Message != "" {
		apiErr.Response = &parsed
	}
	return apiErr
}
