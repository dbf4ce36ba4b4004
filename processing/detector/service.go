package processing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	log "facelens/internal/log"
	"facelens/internal/models"
)

// RemoteDetector talks to a self-hosted detection server over a websocket.
// Each Detect writes one binary JPEG message and reads one JSON reply.
// A broken connection is dropped and redialled on the next call.
type RemoteDetector struct {
	serverURL string
	dialer    *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewRemoteDetector(host string) *RemoteDetector {
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}

	return &RemoteDetector{
		serverURL: u.String(),
		dialer:    &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
	}
}

func (d *RemoteDetector) connect(ctx context.Context) (*websocket.Conn, error) {
	if d.conn != nil {
		return d.conn, nil
	}

	log.Debug("connecting to detector server", "url", d.serverURL)
	conn, _, err := d.dialer.DialContext(ctx, d.serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("detector server: dial %s: %w", d.serverURL, err)
	}
	log.Info("connected to detector server", "url", d.serverURL)

	d.conn = conn
	return conn, nil
}

func (d *RemoteDetector) drop() {
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
}

func (d *RemoteDetector) Detect(ctx context.Context, jpegData []byte) ([]models.DetectedFace, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	conn, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	conn.SetWriteDeadline(deadline)
	conn.SetReadDeadline(deadline)

	// Unblock the read if ctx is cancelled without a deadline.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := conn.WriteMessage(websocket.BinaryMessage, jpegData); err != nil {
		d.drop()
		return nil, fmt.Errorf("detector server: write: %w", err)
	}

	_, message, err := conn.ReadMessage()
	if err != nil {
		d.drop()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, fmt.Errorf("detector server: read: %w", context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("detector server: read: %w", err)
	}

	var faces []models.DetectedFace
	if err := json.Unmarshal(message, &faces); err != nil {
		return nil, fmt.Errorf("detector server: decode reply: %w", err)
	}

	return faces, nil
}

func (d *RemoteDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drop()
	return nil
}
