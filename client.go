package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Contact is the consolidated view of one customer returned by /identify.
type Contact struct {
	PrimaryContactID    uint     `json:"primaryContactId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIDs []uint   `json:"secondaryContactIds"`
}

type Client interface {
	io.Closer
	// Identify resolves the email and/or phone number to a contact. Empty values are omitted.
	Identify(ctx context.Context, email, phoneNumber string) (*Contact, error)
}

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity: %d: %s", e.StatusCode, e.Message)
}

type client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) (Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("identity: base url is required")
	}

	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}, nil
}

func (c *client) Identify(ctx context.Context, email, phoneNumber string) (*Contact, error) {
	body := map[string]*string{"email": nil, "phoneNumber": nil}
	if email != "" {
		body["email"] = &email
	}
	if phoneNumber != "" {
		body["phoneNumber"] = &phoneNumber
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/identify", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&apiErr)
		return nil, &APIError{StatusCode: res.StatusCode, Message: apiErr.Error}
	}

	var out struct {
		Contact *Contact `json:"contact"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}

	return out.Contact, nil
}

func (c *client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
