// Package camera fetches still frames from a networked camera that serves
// single JPEG snapshots over HTTP (for example the IP Webcam app's /shot.jpg).
package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultTimeout bounds a single snapshot request.
const DefaultTimeout = 5 * time.Second

// maxFrameSize caps the snapshot body we are willing to buffer.
const maxFrameSize = 32 << 20

// Frame is one decoded camera snapshot.
type Frame struct {
	Image      image.Image
	Data       []byte // encoded bytes as served by the camera
	Format     string // decoder name: jpeg, png, webp, bmp
	CapturedAt time.Time
}

// Width of the decoded image in pixels.
func (f *Frame) Width() int {
	return f.Image.Bounds().Dx()
}

// Height of the decoded image in pixels.
func (f *Frame) Height() int {
	return f.Image.Bounds().Dy()
}

// AcquisitionError means no frame could be obtained: the camera was
// unreachable, answered with an error, or sent bytes that do not decode.
type AcquisitionError struct {
	URL string
	Err error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("frame acquisition from %s failed: %v", e.URL, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// Source yields frames. Implementations return *AcquisitionError on failure.
type Source interface {
	Acquire(ctx context.Context) (*Frame, error)
}

// Client polls a snapshot URL.
type Client struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewClient creates a snapshot client. A bare "host:port" address is expanded
// to http://host:port/shot.jpg.
func NewClient(address string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:    ShotURL(address),
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// ShotURL normalizes a camera address into a snapshot URL.
func ShotURL(address string) string {
	address = strings.TrimSpace(address)
	if strings.HasPrefix(address, "http://") || strings.HasPrefix(address, "https://") {
		return address
	}
	return "http://" + strings.TrimSuffix(address, "/") + "/shot.jpg"
}

// URL returns the snapshot URL being polled.
func (c *Client) URL() string {
	return c.url
}

// Acquire fetches and decodes one frame.
func (c *Client) Acquire(ctx context.Context) (*Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, c.fail(fmt.Errorf("could not create request: %w", err))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.fail(fmt.Errorf("could not send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.fail(fmt.Errorf("camera returned status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameSize))
	if err != nil {
		return nil, c.fail(fmt.Errorf("could not read response body: %w", err))
	}

	frame, err := Decode(data)
	if err != nil {
		return nil, c.fail(err)
	}
	frame.CapturedAt = c.now()
	return frame, nil
}

func (c *Client) fail(err error) error {
	return &AcquisitionError{URL: c.url, Err: err}
}

// Decode turns encoded image bytes into a Frame without a capture time.
func Decode(data []byte) (*Frame, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return &Frame{Image: img, Data: data, Format: format}, nil
}
