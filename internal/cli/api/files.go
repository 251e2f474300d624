package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/argscan/argscan/internal/cli/client"
)

// GenomeFile is an uploaded sequence file
type GenomeFile struct {
	FileID           int64  `json:"fileId"`
	UserID           int64  `json:"userId"`
	Username         string `json:"username,omitempty"`
	OriginalFilename string `json:"originalFilename"`
	FileSize         int64  `json:"fileSize"`
	FileType         string `json:"fileType"`
	FileFormat       string `json:"fileFormat,omitempty"`
	Description      string `json:"description,omitempty"`
	UploadTime       string `json:"uploadTime,omitempty"`
	Status           string `json:"status,omitempty"`
	IsPublic         bool   `json:"isPublic"`
}

// UploadOptions are the optional form fields of an upload
type UploadOptions struct {
	FileType    string // defaults to auto-detect on the server
	Reference   string
	Description string
	IsPublic    bool
	Metadata    string // JSON document
}

// Upload streams a local file to the service
func (c *Client) Upload(ctx context.Context, path string, opts UploadOptions) (*GenomeFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	form := &client.Multipart{
		Files: []client.FilePart{{Field: "file", FileName: filepath.Base(path), Content: f}},
	}
	add := func(name, value string) {
		if value != "" {
			form.Fields = append(form.Fields, client.Field{Name: name, Value: value})
		}
	}
	add("fileType", opts.FileType)
	add("reference", opts.Reference)
	add("description", opts.Description)
	add("isPublic", strconv.FormatBool(opts.IsPublic))
	add("metadata", opts.Metadata)

	var file GenomeFile
	if err := c.caller.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/genome/upload",
		Body:   form,
	}, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// ListFiles returns the caller's files
func (c *Client) ListFiles(ctx context.Context) ([]GenomeFile, error) {
	var files []GenomeFile
	err := c.caller.Do(ctx, client.Request{Path: "/genome/list"}, &files)
	return files, err
}

// GetFile returns one file
func (c *Client) GetFile(ctx context.Context, id int64) (*GenomeFile, error) {
	var file GenomeFile
	if err := c.caller.Do(ctx, client.Request{Path: fmt.Sprintf("/genome/%d", id)}, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// DeleteFile removes one of the caller's files
func (c *Client) DeleteFile(ctx context.Context, id int64) error {
	return c.caller.Do(ctx, client.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/genome/%d", id),
	}, nil)
}

// FileTypes lists the accepted file types
func (c *Client) FileTypes(ctx context.Context) ([]Option, error) {
	var opts []Option
	err := c.caller.Do(ctx, client.Request{Path: "/genome/file-types"}, &opts)
	return opts, err
}

// References lists the reference genomes
func (c *Client) References(ctx context.Context) ([]Option, error) {
	var opts []Option
	err := c.caller.Do(ctx, client.Request{Path: "/genome/references"}, &opts)
	return opts, err
}
