// Package actions implements the external collaborators invoked by the
// dispatcher: the Minecraft RCON client, the OBS WebSocket client, the
// outbound webhook poster, the local URL opener, and the music queue manager.
//
// Collaborators that hold a persistent connection reconnect lazily on the
// next invocation after a failure; a failed call is never retried by the
// collaborator itself.
package actions

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// RCON packet types per the Source RCON protocol.
const (
	rconTypeAuth         = 3
	rconTypeAuthResponse = 2
	rconTypeCommand      = 2
	rconTypeResponse     = 0
)

const (
	rconDialTimeout = 5 * time.Second
	rconIOTimeout   = 5 * time.Second

	rconMultiMaxCount    = 50
	rconMultiMinInterval = 50 * time.Millisecond
	rconMultiMaxInterval = 5 * time.Second
)

// ErrRconDisabled is returned when no RCON password is configured.
var ErrRconDisabled = errors.New("rcon disabled (missing password)")

// RconConfig holds the remote-console endpoint settings.
type RconConfig struct {
	Host     string
	Port     int
	Password string
}

// RconClient is a minimal Source-RCON client. The connection is established
// lazily on first use and dropped on any send failure so the next call
// reconnects. No RCON library exists in our stack; the framing is a few
// length-prefixed little-endian fields.
type RconClient struct {
	cfg RconConfig

	mu     sync.Mutex
	conn   net.Conn
	nextID int32

	// sleep is swapped out in tests to avoid real waits in SendMulti.
	sleep func(time.Duration)
}

// NewRconClient constructs a client; the connection is not opened yet.
func NewRconClient(cfg RconConfig) *RconClient {
	return &RconClient{cfg: cfg, sleep: time.Sleep}
}

// Enabled reports whether a password is configured.
func (c *RconClient) Enabled() bool { return c.cfg.Password != "" }

// Send executes one console command and returns the server's response body.
func (c *RconClient) Send(command string) (string, error) {
	if !c.Enabled() {
		return "", ErrRconDisabled
	}
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return "", errors.New("empty command")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(); err != nil {
		return "", err
	}

	resp, err := c.requestLocked(rconTypeCommand, cmd)
	if err != nil {
		// Drop the connection so the next call reconnects.
		c.closeLocked()
		log.Error().Err(err).Str("command", cmd).Msg("rcon send failed")
		return "", err
	}
	return resp, nil
}

// SendMulti executes the command count times with a pause between
// repetitions. Count and interval are clamped to sane bounds. Individual
// failures do not stop the remaining repetitions.
func (c *RconClient) SendMulti(command string, count int, interval time.Duration) error {
	if count < 1 {
		count = 1
	}
	if count > rconMultiMaxCount {
		count = rconMultiMaxCount
	}
	if interval < rconMultiMinInterval {
		interval = 150 * time.Millisecond
	}
	if interval > rconMultiMaxInterval {
		interval = rconMultiMaxInterval
	}

	for i := 0; i < count; i++ {
		if _, err := c.Send(command); err != nil && errors.Is(err, ErrRconDisabled) {
			return err
		}
		if i < count-1 {
			c.sleep(interval)
		}
	}
	return nil
}

// Close tears down the connection if open.
func (c *RconClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *RconClient) connectLocked() error {
	if c.conn != nil {
		return nil
	}

	addr := net.JoinHostPort(c.cfg.Host, fmt.Sprintf("%d", c.cfg.Port))
	log.Info().Str("addr", addr).Msg("rcon connecting")
	conn, err := net.DialTimeout("tcp", addr, rconDialTimeout)
	if err != nil {
		return err
	}
	c.conn = conn

	if _, err := c.requestLocked(rconTypeAuth, c.cfg.Password); err != nil {
		c.closeLocked()
		return fmt.Errorf("rcon auth: %w", err)
	}
	log.Info().Str("addr", addr).Msg("rcon connected")
	return nil
}

func (c *RconClient) closeLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// requestLocked writes one packet and reads the matching response. Auth
// failures surface as a response id of -1.
func (c *RconClient) requestLocked(packetType int32, body string) (string, error) {
	c.nextID++
	id := c.nextID

	if err := c.writePacket(id, packetType, body); err != nil {
		return "", err
	}
	for {
		respID, _, respBody, err := c.readPacket()
		if err != nil {
			return "", err
		}
		if respID == -1 {
			return "", errors.New("authentication refused")
		}
		if respID == id {
			return respBody, nil
		}
		// Stale packet from a previous failed exchange: keep reading.
	}
}

func (c *RconClient) writePacket(id, packetType int32, body string) error {
	// size = id + type + body + two trailing NULs
	size := int32(4 + 4 + len(body) + 2)
	buf := make([]byte, 4+size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(size))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(id))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(packetType))
	copy(buf[12:], body)

	_ = c.conn.SetWriteDeadline(time.Now().Add(rconIOTimeout))
	_, err := c.conn.Write(buf)
	return err
}

func (c *RconClient) readPacket() (id, packetType int32, body string, err error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(rconIOTimeout))

	var sizeBuf [4]byte
	if _, err = readFull(c.conn, sizeBuf[:]); err != nil {
		return 0, 0, "", err
	}
	size := int32(binary.LittleEndian.Uint32(sizeBuf[:]))
	if size < 10 || size > 1<<16 {
		return 0, 0, "", fmt.Errorf("invalid rcon packet size %d", size)
	}

	payload := make([]byte, size)
	if _, err = readFull(c.conn, payload); err != nil {
		return 0, 0, "", err
	}

	id = int32(binary.LittleEndian.Uint32(payload[0:4]))
	packetType = int32(binary.LittleEndian.Uint32(payload[4:8]))
	body = string(payload[8 : len(payload)-2])
	return id, packetType, body, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
