package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/energynexus/nexus-cli/internal/models"
)

// StartSimulation asks the backend to begin streaming
func (c *Client) StartSimulation(ctx context.Context) (string, error) {
	data, err := c.authed(ctx, http.MethodPost, "/simulation/start", "", nil)
	return message(data), err
}

// StopSimulation asks the backend to stop streaming
func (c *Client) StopSimulation(ctx context.Context) (string, error) {
	data, err := c.authed(ctx, http.MethodPost, "/simulation/stop", "", nil)
	return message(data), err
}

// ClearData purges every stored reading
func (c *Client) ClearData(ctx context.Context) (string, error) {
	data, err := c.authed(ctx, http.MethodDelete, "/admin/data/clear", "", nil)
	return message(data), err
}

// IngestDataset uploads a CSV dataset as the multipart field "file"
func (c *Client) IngestDataset(ctx context.Context, name string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("failed to read dataset: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finish form: %w", err)
	}
	data, err := c.authed(ctx, http.MethodPost, "/admin/ingest-dataset", mw.FormDataContentType(), &buf)
	return message(data), err
}

// Users lists every account
func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	data, err := c.authed(ctx, http.MethodGet, "/admin/users", "", nil)
	if err != nil {
		return nil, err
	}
	users, err := DecodeUsers(data)
	if err != nil {
		return nil, malformed("user list", err)
	}
	return users, nil
}

// ChangeRole sets the role of the account identified by email
func (c *Client) ChangeRole(ctx context.Context, email string, role models.Role) (string, error) {
	if err := models.ValidateEmail(email); err != nil {
		return "", &Error{Kind: KindValidation, Code: CodeInvalidInput, Message: err.Error(), Err: err}
	}
	data, err := c.authedJSON(ctx, http.MethodPost, "/admin/users/change-role", map[string]string{
		"email":   email,
		"newRole": string(role),
	})
	return message(data), err
}

// message extracts a human readable confirmation from a response body
func message(data []byte) string {
	_, msg := parseErrorBody(data)
	return strings.Trim(msg, `"`)
}
