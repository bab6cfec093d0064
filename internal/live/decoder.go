package live

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/energynexus/nexus-cli/internal/models"
)

const defaultEventName = "message"

// Decoder reads server-sent events from a stream
type Decoder struct {
	r           *bufio.Reader
	lastEventID string
	retry       time.Duration
}

// NewDecoder creates a decoder reading from r
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// LastEventID returns the most recent id field seen
func (d *Decoder) LastEventID() string {
	return d.lastEventID
}

// Retry returns the server's requested reconnection delay, zero if none
func (d *Decoder) Retry() time.Duration {
	return d.retry
}

// Next blocks until a complete event has been read. An event cut off by the
// end of the stream is discarded and io.EOF returned.
func (d *Decoder) Next() (models.StreamEvent, error) {
	var (
		name    string
		data    strings.Builder
		hasData bool
	)
	for {
		line, err := d.readLine()
		if err != nil {
			return models.StreamEvent{}, err
		}

		if line == "" {
			if !hasData {
				name = ""
				continue
			}
			if name == "" {
				name = defaultEventName
			}
			return models.StreamEvent{
				ID:         d.lastEventID,
				Name:       name,
				Data:       strings.TrimSuffix(data.String(), "\n"),
				ReceivedAt: time.Now(),
			}, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if found {
			value = strings.TrimPrefix(value, " ")
		}
		switch field {
		case "event":
			name = value
		case "data":
			data.WriteString(value)
			data.WriteByte('\n')
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				d.lastEventID = value
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				d.retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
}

// readLine returns one line without its terminator, accepting LF and CRLF
func (d *Decoder) readLine() (string, error) {
	line, err := d.r.ReadString('\n')
	if err != nil {
		// a final unterminated line never completes an event
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}
