package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/argscan/argscan/internal/cli/client"
)

type emailRequest struct {
	Email string `json:"email"`
}

// LoginRequest signs in with a username or email and either a password or
// an emailed code
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password,omitempty"`
	Code       string `json:"code,omitempty"`
}

// LoginResponse carries the new credential and the identity it belongs to
type LoginResponse struct {
	Token    string          `json:"token"`
	UserInfo json.RawMessage `json:"userInfo"`
}

// RegisterRequest creates an account
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

// ResetPasswordRequest sets a new password using an emailed code
type ResetPasswordRequest struct {
	Email           string `json:"email"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
	Code            string `json:"code"`
}

// SendCode emails a registration code. A development service echoes the
// code; otherwise the returned text is a confirmation.
func (c *Client) SendCode(ctx context.Context, email string) (string, error) {
	return c.sendCode(ctx, "/auth/send-code", email)
}

func (c *Client) sendCode(ctx context.Context, path, email string) (string, error) {
	var reply string
	err := c.caller.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   emailRequest{Email: email},
	}, &reply)
	return reply, err
}

// SendLoginCode requests a one-time login code. The service returns the
// code itself, which is passed through.
func (c *Client) SendLoginCode(ctx context.Context, email string) (string, error) {
	return c.sendCode(ctx, "/auth/send-login-code", email)
}

// Login exchanges credentials for a token
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.caller.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   req,
	}, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("login response did not include a token")
	}
	return &resp, nil
}

// Register creates an account
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.caller.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Body:   req,
	}, nil)
}

// SendResetCode emails a password reset code, see SendCode for the reply
func (c *Client) SendResetCode(ctx context.Context, email string) (string, error) {
	return c.sendCode(ctx, "/auth/send-reset-code", email)
}

// ResetPassword sets a new password
func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	return c.caller.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/auth/reset-password",
		Body:   req,
	}, nil)
}

// Logout ends the session on the server
func (c *Client) Logout(ctx context.Context) error {
	return c.caller.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/auth/logout",
	}, nil)
}

// Me returns the current identity as sent by the service
func (c *Client) Me(ctx context.Context) (json.RawMessage, error) {
	return c.caller.Execute(ctx, client.Request{Path: "/auth/me"})
}
