package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/tidwall/gjson"
)

// LoginResult is what a successful login yields
type LoginResult struct {
	Token    string
	ID       string
	Username string
	Role     models.Role
}

// Login exchanges credentials for a token. The role comes from the response
// body's role field and nowhere else.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body, err := jsonBody(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/login", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, data, err := c.send(c.httpClient, req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusNotFound:
		_, message := parseErrorBody(data)
		if message == "" {
			message = "invalid email or password"
		}
		return nil, &Error{Kind: KindAuthentication, Status: resp.StatusCode, Code: CodeInvalidCredentials, Message: message}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, statusError(resp.StatusCode, data)
	}

	if !gjson.ValidBytes(data) {
		return nil, malformed("login response", errors.New("body is not JSON"))
	}
	root := gjson.ParseBytes(data)
	result := &LoginResult{
		Token:    first(root, "token", "accessToken", "jwt").String(),
		ID:       first(root, "id", "userId").String(),
		Username: root.Get("username").String(),
	}
	if result.Token == "" {
		return nil, malformed("login response", errors.New("no token"))
	}
	role, ok := models.ParseRole(root.Get("role").String())
	if !ok {
		return nil, &Error{Kind: KindAuthentication, Status: resp.StatusCode, Code: CodeRoleMissing, Message: "login response carries no recognized role"}
	}
	result.Role = role
	return result, nil
}

// Register creates an account. Field constraints are checked locally first
// and a failing registration never reaches the backend.
func (c *Client) Register(ctx context.Context, reg models.Registration) error {
	if err := reg.Validate(); err != nil {
		return &Error{Kind: KindValidation, Code: CodeInvalidInput, Message: err.Error(), Err: err}
	}
	body, err := jsonBody(reg)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/register", body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, data, err := c.send(c.httpClient, req)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return classifyRegistration(resp.StatusCode, data)
}

// Logout tells the backend to revoke token. Callers treat failure as advisory.
func (c *Client) Logout(ctx context.Context, token string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, data, err := c.send(c.httpClient, req)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, data)
	}
	return nil
}
