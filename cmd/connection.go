// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Thermoquad/lidarstat/pkg/lidar"
	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// Connection is a lidar port that can be closed
type Connection interface {
	lidar.Port
	Close() error
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// ReadTimeout keeps reading until p is full or the timeout has elapsed.
// The serial driver returns 0 bytes with a nil error when its read
// timeout expires.
func (s *SerialConnection) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	got := 0
	for got < len(p) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if err := s.port.SetReadTimeout(remaining); err != nil {
			return got, err
		}
		n, err := s.port.Read(p[got:])
		if err != nil {
			return got, err
		}
		if n == 0 {
			break
		}
		got += n
	}
	return got, nil
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConnection carries the serial byte stream in binary WebSocket
// messages. A background reader buffers incoming messages so reads can
// time out like a serial port.
type WebSocketConnection struct {
	conn     *websocket.Conn
	messages chan []byte
	buf      []byte

	mu     sync.Mutex
	err    error
	closed chan struct{}
	once   sync.Once
}

func newWebSocketConnection(conn *websocket.Conn) *WebSocketConnection {
	w := &WebSocketConnection{
		conn:     conn,
		messages: make(chan []byte, 64),
		closed:   make(chan struct{}),
	}
	go w.readLoop()
	return w
}

func (w *WebSocketConnection) readLoop() {
	defer close(w.messages)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			w.err = err
			w.mu.Unlock()
			return
		}

		// Only binary messages carry device bytes
		if messageType != websocket.BinaryMessage {
			continue
		}

		select {
		case w.messages <- data:
		case <-w.closed:
			return
		}
	}
}

func (w *WebSocketConnection) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	got := 0
	for got < len(p) {
		// Drain buffered data first
		if len(w.buf) > 0 {
			n := copy(p[got:], w.buf)
			w.buf = w.buf[n:]
			got += n
			continue
		}

		select {
		case data, ok := <-w.messages:
			if !ok {
				w.mu.Lock()
				err := w.err
				w.mu.Unlock()
				if err == nil {
					err = ErrConnectionClosed
				}
				return got, err
			}
			w.buf = data
		case <-timer.C:
			return got, nil
		}
	}
	return got, nil
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	err := w.conn.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	w.once.Do(func() { close(w.closed) })
	return w.conn.Close()
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode, err := PortOptions{BaudRate: baudRate}.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	// Parse and validate URL
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	// Validate scheme
	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	// Create dialer with timeout
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	// Configure TLS for wss://
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	// Build HTTP headers with Basic auth
	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	// Connect
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return newWebSocketConnection(conn), nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("LIDAR_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// connectionOpener returns an opener for the configured transport. The
// password is asked for at most once even when several speeds are probed.
func connectionOpener() (lidar.Opener, string, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}
		open := func(int) (lidar.Port, error) {
			return OpenWebSocketConnection(wsURL, wsUsername, password, wsNoSSLVerify)
		}
		return open, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if cfg.Device != "" {
		device := cfg.Device
		open := func(baud int) (lidar.Port, error) {
			return OpenSerialConnection(device, baud)
		}
		return open, fmt.Sprintf("Serial: %s", device), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// OpenLidar connects to the device. With a fixed baud rate the device is
// detected at that speed only; otherwise every supported series is probed.
func OpenLidar() (*lidar.Lidar, string, error) {
	open, connInfo, err := connectionOpener()
	if err != nil {
		return nil, "", err
	}

	if cfg.Baud == 0 || wsURL != "" {
		l, err := lidar.Find(open)
		if err != nil {
			return nil, "", err
		}
		return l, fmt.Sprintf("%s @ %d baud", connInfo, l.Profile.Baud), nil
	}

	port, err := open(cfg.Baud)
	if err != nil {
		return nil, "", err
	}
	series, name, err := lidar.Detect(port)
	if err != nil {
		port.(Connection).Close()
		return nil, "", err
	}
	profile, ok := lidar.ProfileFor(series)
	if !ok {
		port.(Connection).Close()
		return nil, "", fmt.Errorf("%w at %d baud (series %s)", lidar.ErrNoDevice, cfg.Baud, series)
	}
	if profile.Baud != cfg.Baud {
		log.Printf("%s series normally runs at %d baud, using %d", series, profile.Baud, cfg.Baud)
		profile.Baud = cfg.Baud
	}
	return lidar.New(port, profile, name), fmt.Sprintf("%s @ %d baud", connInfo, cfg.Baud), nil
}
