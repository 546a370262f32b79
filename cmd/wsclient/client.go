package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/satriahrh/keynotes/domain"
	"github.com/satriahrh/keynotes/domain/entities"
	"github.com/satriahrh/keynotes/internal/api"
)

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

type uploadOptions struct {
	Task           string
	Language       string
	GroupBySpeaker bool
}

func newClient(baseURL string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// Token exchanges the access key for a token and keeps it for later requests
func (c *client) Token(ctx context.Context, accessKey, clientID string) (*api.TokenResponse, error) {
	body, _ := json.Marshal(api.TokenRequest{AccessKey: accessKey, ClientID: clientID})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/auth/token", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp api.TokenResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	c.token = resp.Token
	return &resp, nil
}

// Upload sends an audio file as a new transcription job
func (c *client) Upload(ctx context.Context, path string, opts uploadOptions) (*entities.TranscriptionJob, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	writer.WriteField("task", opts.Task)
	writer.WriteField("group_by_speaker", strconv.FormatBool(opts.GroupBySpeaker))
	if opts.Language != "" {
		writer.WriteField("language", opts.Language)
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/transcriptions", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var job entities.TranscriptionJob
	if err := c.do(req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Job fetches the current state of a job
func (c *client) Job(ctx context.Context, jobID string) (*entities.TranscriptionJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/transcriptions/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}
	var job entities.TranscriptionJob
	if err := c.do(req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Text fetches the rendered transcript or keynotes of a finished job
func (c *client) Text(ctx context.Context, jobID string) (string, error) {
	var buf bytes.Buffer
	if err := c.download(ctx, "/api/v1/transcriptions/"+url.PathEscape(jobID)+"/text", &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Export writes the spreadsheet of a finished job to w
func (c *client) Export(ctx context.Context, jobID string, w io.Writer) error {
	return c.download(ctx, "/api/v1/transcriptions/"+url.PathEscape(jobID)+"/export", w)
}

// Follow streams progress for jobID to onProgress and returns the final message
func (c *client) Follow(ctx context.Context, jobID string, onProgress func(*domain.JobProgressMessage)) (*domain.JobProgressMessage, error) {
	wsURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	if wsURL.Scheme == "https" {
		wsURL.Scheme = "wss"
	} else {
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/ws"
	q := wsURL.Query()
	q.Set("job_id", jobID)
	q.Set("token", c.token)
	wsURL.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket connection failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket connection failed: %w", err)
	}
	defer conn.Close()

	// Close the connection when ctx ends so the blocking read returns
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	// The job may have finished before the connection followed it
	job, err := c.Job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsFinished() {
		return finalFromJob(job), nil
	}

	for {
		var msg domain.JobProgressMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to read progress: %w", err)
		}
		if msg.JobID != jobID {
			continue
		}
		onProgress(&msg)
		if msg.IsFinal() {
			return &msg, nil
		}
	}
}

func finalFromJob(job *entities.TranscriptionJob) *domain.JobProgressMessage {
	msg := &domain.JobProgressMessage{
		Type:      domain.ProgressJobCompleted,
		JobID:     job.ID,
		Status:    string(job.Status),
		Timestamp: job.UpdatedAt,
	}
	if job.Status == entities.JobStatusFailed {
		msg.Type = domain.ProgressJobFailed
		msg.Error = job.Error
	}
	return msg
}

func (c *client) download(ctx context.Context, path string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *client) do(req *http.Request, v interface{}) error {
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return responseError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func responseError(resp *http.Response) error {
	var errResp api.ErrorResponse
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, errResp.Message)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
