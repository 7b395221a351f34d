// Package rtsp implements the RTSP/SAT>IP collaborator: the
// only external interface the scan core depends on. It speaks the SAT>IP
// subset of RTSP/1.0 (SETUP, PLAY, PLAY with a pids= query for PID
// changes, TEARDOWN) against a real tuner device over TCP, plus the RTP/UDP data
// socket the device streams transport-stream packets to.
package rtsp

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"
)

// Client owns one RTSP control connection and the paired UDP data socket
// for a single transponder session.
type Client struct {
	host string
	rtspPort int

	conn   net.Conn
	reader *bufio.Reader
	cseq   int

	udp *net.UDPConn

	sessionID string
	streamID  string
}

const defaultRTSPPort = 554

// Dial opens the RTSP control connection and the local UDP data socket on
// an ephemeral port, which the caller learns via ClientPort.
func Dial(host string, rtspPort int) (*Client, error) {
	if rtspPort == 0 {
		rtspPort = defaultRTSPPort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(rtspPort))
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("rtsp: dial %s: %w", addr, err)
	}

	udp, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rtsp: open data socket: %w", err)
	}

	return &Client{
		host:     host,
		rtspPort: rtspPort,
		conn:     conn,
		reader:   bufio.NewReader(conn),
		udp:      udp,
	}, nil
}

// ClientPort is the ephemeral UDP port learned at Dial time.
func (c *Client) ClientPort() int {
	return c.udp.LocalAddr().(*net.UDPAddr).Port
}

func (c *Client) nextCSeq() int {
	c.cseq++
	return c.cseq
}

func (c *Client) request(method, uri string, headers map[string]string) (status int, respHeaders map[string]string, err error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s RTSP/1.0\r\n", method, uri)
	fmt.Fprintf(&b, "CSeq: %d\r\n", c.nextCSeq())
	for k, v := range headers {
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}
	b.WriteString("\r\n")

	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.conn.Write([]byte(b.String())); err != nil {
		return 0, nil, fmt.Errorf("rtsp: write %s: %w", method, err)
	}

	c.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	statusLine, err := c.reader.ReadString('\n')
	if err != nil {
		return 0, nil, fmt.Errorf("rtsp: read status line: %w", err)
	}
	fields := strings.SplitN(strings.TrimSpace(statusLine), " ", 3)
	if len(fields) < 2 {
		return 0, nil, fmt.Errorf("rtsp: malformed status line %q", statusLine)
	}
	status, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, nil, fmt.Errorf("rtsp: malformed status code %q: %w", fields[1], err)
	}

	respHeaders = map[string]string{}
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return 0, nil, fmt.Errorf("rtsp: read headers: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if k, v, ok := strings.Cut(line, ":"); ok {
			respHeaders[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}

	if status != 200 {
		return status, respHeaders, fmt.Errorf("rtsp: %s: non-200 response %d", method, status)
	}
	return status, respHeaders, nil
}

// Setup issues SETUP then PLAY for tuneQuery, recording the session id and
// stream id the device assigns.
func (c *Client) Setup(tuneQuery string) error {
	uri := fmt.Sprintf("rtsp://%s:%d/?%s", c.host, c.rtspPort, tuneQuery)
	transport := fmt.Sprintf("RTP/AVP;unicast;client_port=%d-%d", c.ClientPort(), c.ClientPort()+1)

	_, headers, err := c.request("SETUP", uri, map[string]string{"Transport": transport})
	if err != nil {
		return err
	}
	session := headers["session"]
	if session == "" {
		return fmt.Errorf("rtsp: SETUP response missing Session header")
	}
	c.sessionID, _, _ = strings.Cut(session, ";")
	c.streamID = headers["com.ses.streamid"]
	if c.streamID == "" {
		c.streamID = streamIDFromURI(uri)
	}

	playURI := fmt.Sprintf("rtsp://%s:%d/stream=%s", c.host, c.rtspPort, c.streamID)
	if _, _, err := c.request("PLAY", playURI, map[string]string{"Session": c.sessionID}); err != nil {
		return err
	}
	log.Printf("rtsp: session %s stream %s tuned %s", c.sessionID, c.streamID, tuneQuery)
	return nil
}

// SetPids replaces the subscribed PID set on the live session: adding a
// filter on a new PID implicitly subscribes that PID. An empty set sends
// pids=none.
func (c *Client) SetPids(tuneQuery string, pids []uint16) error {
	csv := "none"
	if len(pids) > 0 {
		parts := make([]string, len(pids))
		for i, p := range pids {
			parts[i] = strconv.Itoa(int(p))
		}
		csv = strings.Join(parts, ",")
	}
	uri := fmt.Sprintf("rtsp://%s:%d/stream=%s?%s&pids=%s", c.host, c.rtspPort, c.streamID, tuneQuery, csv)
	_, _, err := c.request("PLAY", uri, map[string]string{"Session": c.sessionID})
	return err
}

// Teardown issues TEARDOWN and releases both sockets.
func (c *Client) Teardown() {
	if c.sessionID != "" {
		uri := fmt.Sprintf("rtsp://%s:%d/stream=%s", c.host, c.rtspPort, c.streamID)
		if _, _, err := c.request("TEARDOWN", uri, map[string]string{"Session": c.sessionID}); err != nil {
			log.Printf("rtsp: teardown: %v", err)
		}
	}
	c.conn.Close()
	c.udp.Close()
}

// ControlReady reports whether the control connection has readable bytes
// within budget, for the main pump's multiplexed wait.
func (c *Client) ControlReady(budget time.Duration) bool {
	c.conn.SetReadDeadline(time.Now().Add(budget))
	_, err := c.reader.Peek(1)
	return err == nil
}

// ReadControl drains and discards whatever control bytes are pending.
func (c *Client) ReadControl() {
	c.conn.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
	buf := make([]byte, 4096)
	for {
		n, err := c.reader.Read(buf)
		if n == 0 || err != nil {
			return
		}
	}
}

// ReadUDP reads one RTP/UDP datagram into buf, waiting up to budget
// before reporting ok=false. UDP has no peek
// operation, so readiness and the read itself are the same call.
func (c *Client) ReadUDP(buf []byte, budget time.Duration) (n int, ok bool) {
	c.udp.SetReadDeadline(time.Now().Add(budget))
	n, err := c.udp.Read(buf)
	if err != nil {
		return 0, false
	}
	return n, true
}

func streamIDFromURI(uri string) string {
	// SAT>IP devices typically echo stream=N in the SETUP response's
	// com.ses.streamID header; fall back to "1" when absent, matching
	// the common single-stream-per-session device behavior.
	return "1"
}
