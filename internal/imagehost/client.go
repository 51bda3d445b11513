package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"
)

var ErrUploadFailed = errors.New("image upload failed")

// Client uploads images to an imgbb-compatible endpoint.
type Client struct {
	endpoint string
	key      string
	http     *fasthttp.Client
	timeout  time.Duration
}

// New builds a Client. The key is sent as the "key" query parameter.
func New(endpoint, key string) *Client {
	return &Client{
		endpoint: endpoint,
		key:      key,
		http:     &fasthttp.Client{Name: "messenger-service", MaxResponseBodySize: 1 << 20},
		timeout:  15 * time.Second,
	}
}

type uploadResponse struct {
	Success bool `json:"success"`
	Data    struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Upload posts the image as multipart field "image" and returns the hosted URL.
func (c *Client) Upload(ctx context.Context, filename, _ string, data []byte) (string, error) {
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	part, err := form.CreateFormFile("image", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	target, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("image host url: %w", err)
	}
	q := target.Query()
	q.Set("key", c.key)
	target.RawQuery = q.Encode()

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(target.String())
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(form.FormDataContentType())
	req.SetBody(body.Bytes())

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	var parsed uploadResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", fmt.Errorf("%w: status %d", ErrUploadFailed, resp.StatusCode())
	}
	if !parsed.Success || parsed.Data.URL == "" {
		return "", fmt.Errorf("%w: status %d", ErrUploadFailed, resp.StatusCode())
	}
	return parsed.Data.URL, nil
}
