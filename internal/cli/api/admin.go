package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/argscan/argscan/internal/cli/client"
)

// User is an account as seen by an administrator
type User struct {
	UserID      int64  `json:"userId"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt,omitempty"`
	LastLoginAt string `json:"lastLoginAt,omitempty"`
	FileCount   int64  `json:"fileCount"`
	TaskCount   int64  `json:"taskCount"`
}

// SystemStatistics are the service-wide counters
type SystemStatistics struct {
	TotalUsers  int64 `json:"totalUsers"`
	TotalFiles  int64 `json:"totalFiles"`
	TotalTasks  int64 `json:"totalTasks"`
	TotalLogins int64 `json:"totalLogins"`
}

// Users lists all accounts
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var users []User
	err := c.caller.Do(ctx, client.Request{Path: "/admin/users"}, &users)
	return users, err
}

// SearchUsers finds accounts by username or id
func (c *Client) SearchUsers(ctx context.Context, keyword string) ([]User, error) {
	var users []User
	err := c.caller.Do(ctx, client.Request{
		Path:  "/admin/users/search",
		Query: url.Values{"keyword": {keyword}},
	}, &users)
	return users, err
}

// DeleteUser removes an account and all its data
func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.caller.Do(ctx, client.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/admin/users/%d", id),
	}, nil)
}

// BanUser bans (ban=true) or reinstates an account
func (c *Client) BanUser(ctx context.Context, id int64, ban bool) error {
	return c.caller.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/admin/users/%d/ban", id),
		Query:  url.Values{"ban": {strconv.FormatBool(ban)}},
	}, nil)
}

// AllFiles lists every user's files
func (c *Client) AllFiles(ctx context.Context) ([]GenomeFile, error) {
	var files []GenomeFile
	err := c.caller.Do(ctx, client.Request{Path: "/admin/files"}, &files)
	return files, err
}

// SearchFiles finds files by owner and file keywords; empty keywords are omitted
func (c *Client) SearchFiles(ctx context.Context, userKeyword, fileKeyword string) ([]GenomeFile, error) {
	query := url.Values{}
	if userKeyword != "" {
		query.Set("userKeyword", userKeyword)
	}
	if fileKeyword != "" {
		query.Set("fileKeyword", fileKeyword)
	}

	var files []GenomeFile
	err := c.caller.Do(ctx, client.Request{Path: "/admin/files/search", Query: query}, &files)
	return files, err
}

// AdminDeleteFile removes any user's file
func (c *Client) AdminDeleteFile(ctx context.Context, id int64) error {
	return c.caller.Do(ctx, client.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/admin/files/%d", id),
	}, nil)
}

// SystemStatistics returns the service-wide counters
func (c *Client) SystemStatistics(ctx context.Context) (*SystemStatistics, error) {
	var stats SystemStatistics
	if err := c.caller.Do(ctx, client.Request{Path: "/admin/statistics"}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
