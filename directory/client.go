// Package directory provides access to the external Directory and
// Profile services. The production implementation is an HTTP client;
// Memory is the in-process substitute used by tests and local runs.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/lo"

	"hearthchat/contract"
	"hearthchat/domain"
	"hearthchat/errors"
)

var _ contract.IDirectory = (*Client)(nil)

type Client struct {
	baseURL      string
	serviceToken string
	http         *http.Client
	log          *slog.Logger
}

func NewClient(baseURL, serviceToken string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL:      baseURL,
		serviceToken: serviceToken,
		http:         &http.Client{Timeout: timeout},
		log:          log,
	}
}

type userPayload struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type memberPayload struct {
	ID       int64     `json:"id"`
	Family   int64     `json:"family"`
	User     int64     `json:"user"`
	Role     string    `json:"role"`
	IsActive bool      `json:"is_active"`
	JoinedAt time.Time `json:"joined_at"`
}

type profilePayload struct {
	DisplayName string  `json:"display_name"`
	PhotoURL    *string `json:"photo_url"`
}

func (c *Client) UserByID(ctx context.Context, id domain.UserID) (domain.Principal, error) {
	var payload userPayload
	if err := c.get(ctx, fmt.Sprintf("/api/users/%d/", id), &payload); err != nil {
		return domain.Anonymous, err
	}
	return domain.Principal{UserID: domain.UserID(payload.ID), Email: payload.Email}, nil
}

// ActiveMembers returns the family's current active members. Inactive
// memberships are filtered out here so every caller sees the same
// definition of "current".
func (c *Client) ActiveMembers(ctx context.Context, familyID domain.FamilyID) ([]domain.Member, error) {
	var payload []memberPayload
	if err := c.get(ctx, fmt.Sprintf("/api/families/%d/members/", familyID), &payload); err != nil {
		return nil, err
	}
	active := lo.Filter(payload, func(m memberPayload, _ int) bool { return m.IsActive })
	return lo.Map(active, func(m memberPayload, _ int) domain.Member {
		return domain.Member{
			ID:       domain.MemberID(m.ID),
			FamilyID: domain.FamilyID(m.Family),
			UserID:   domain.UserID(m.User),
			Role:     domain.Role(m.Role),
			IsActive: m.IsActive,
			JoinedAt: m.JoinedAt,
		}
	}), nil
}

func (c *Client) MemberOf(ctx context.Context, familyID domain.FamilyID, userID domain.UserID) (domain.Member, error) {
	members, err := c.ActiveMembers(ctx, familyID)
	if err != nil {
		return domain.Member{}, err
	}
	member, found := lo.Find(members, func(m domain.Member) bool { return m.UserID == userID })
	if !found {
		return domain.Member{}, errors.ErrNotAMember
	}
	return member, nil
}

func (c *Client) Profile(ctx context.Context, id domain.UserID) (domain.Profile, error) {
	var payload profilePayload
	if err := c.get(ctx, fmt.Sprintf("/api/users/%d/profile/", id), &payload); err != nil {
		return domain.Profile{}, err
	}
	return domain.Profile{DisplayName: payload.DisplayName, PhotoURL: payload.PhotoURL}, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(out)
	case http.StatusNotFound:
		return errors.ErrUserNotFound
	default:
		c.log.Warn("Unexpected directory response", "path", path, "status", resp.StatusCode)
		return fmt.Errorf("directory responded %d for %s", resp.StatusCode, path)
	}
}
