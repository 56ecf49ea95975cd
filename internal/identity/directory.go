package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// directoryPageSize is how many users one directory request asks for.
const directoryPageSize = 100

// DirectoryUser is a user as the identity provider lists it.
type DirectoryUser struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
}

// Directory lists the users registered with the identity provider.
type Directory struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewDirectory creates a directory client for the provider API at baseURL.
func NewDirectory(baseURL, apiKey string, timeout time.Duration) (*Directory, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("identity: directory URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("identity: directory URL: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Directory{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type providerUser struct {
	ID             string `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Username       string `json:"username"`
	ImageURL       string `json:"image_url"`
	PrimaryEmailID string `json:"primary_email_address_id"`
	EmailAddresses []struct {
		ID    string `json:"id"`
		Email string `json:"email_address"`
	} `json:"email_addresses"`
}

func (p providerUser) user() DirectoryUser {
	u := DirectoryUser{ID: p.ID, AvatarURL: p.ImageURL}
	u.Name = strings.TrimSpace(p.FirstName + " " + p.LastName)
	if u.Name == "" {
		u.Name = p.Username
	}
	for _, e := range p.EmailAddresses {
		if u.Email == "" || e.ID == p.PrimaryEmailID {
			u.Email = strings.ToLower(e.Email)
		}
	}
	return u
}

// Users returns every user in the directory, following pagination.
func (d *Directory) Users(ctx context.Context) ([]DirectoryUser, error) {
	var all []DirectoryUser
	for offset := 0; ; offset += directoryPageSize {
		page, err := d.page(ctx, offset)
		if err != nil {
			return nil, err
		}
		for _, p := range page {
			all = append(all, p.user())
		}
		if len(page) < directoryPageSize {
			return all, nil
		}
	}
}

func (d *Directory) page(ctx context.Context, offset int) ([]providerUser, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(directoryPageSize))
	q.Set("offset", strconv.Itoa(offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/users?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build directory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list directory users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("list directory users: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var users []providerUser
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("decode directory users: %w", err)
	}
	return users, nil
}
