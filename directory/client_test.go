package directory

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hearthchat/domain"
	"hearthchat/errors"
)

func newFakeDirectoryServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/101/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer service-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"id":101,"email":"alice@example.com"}`)
	})
	mux.HandleFunc("/api/users/101/profile/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"display_name":"Alice","photo_url":"/api/users/101/photo/"}`)
	})
	mux.HandleFunc("/api/families/1/members/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id":1,"family":1,"user":101,"role":"owner","is_active":true},
			{"id":2,"family":1,"user":102,"role":"member","is_active":true},
			{"id":3,"family":1,"user":103,"role":"member","is_active":false}
		]`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T) *Client {
	return NewClient(newFakeDirectoryServer(t).URL, "service-token", 2*time.Second, slog.Default())
}

func TestClient_UserByID(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t)

	principal, err := client.UserByID(context.Background(), 101)
	req.NoError(err)
	req.Equal(domain.UserID(101), principal.UserID)
	req.Equal("alice@example.com", principal.Email)

	_, err = client.UserByID(context.Background(), 999)
	req.ErrorIs(err, errors.ErrUserNotFound)
}

func TestClient_ActiveMembers_Filters_Inactive(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t)

	members, err := client.ActiveMembers(context.Background(), 1)
	req.NoError(err)
	req.Len(members, 2)
	req.Equal(domain.RoleOwner, members[0].Role)
}

func TestClient_MemberOf(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t)

	member, err := client.MemberOf(context.Background(), 1, 102)
	req.NoError(err)
	req.Equal(domain.MemberID(2), member.ID)

	// An inactive membership does not count
	_, err = client.MemberOf(context.Background(), 1, 103)
	req.ErrorIs(err, errors.ErrNotAMember)

	_, err = client.MemberOf(context.Background(), 1, 999)
	req.ErrorIs(err, errors.ErrNotAMember)
}

func TestClient_Profile(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t)

	profile, err := client.Profile(context.Background(), 101)
	req.NoError(err)
	req.Equal("Alice", profile.DisplayName)
	req.NotNil(profile.PhotoURL)
	req.Equal("/api/users/101/photo/", *profile.PhotoURL)
}
