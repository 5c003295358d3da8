package confirm

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pos-register/internal/terminal/session"

	"go.uber.org/zap"
)

// eventTransactionReceived is the event name published when the gateway
// settles a payment. Any transaction on the channel counts as
// confirmation regardless of its status field.
const eventTransactionReceived = "transaction.received"

// ErrWaitTimeout is returned when WaitTimeout elapses with no event
var ErrWaitTimeout = errors.New("timed out waiting for payment confirmation")

// Transaction is the payload carried by a transaction event
type Transaction struct {
	ID      string  `json:"id"`
	OrderID string  `json:"order_id"`
	UserID  string  `json:"user_id"`
	Status  string  `json:"status"`
	Amount  float64 `json:"amount"`
}

// Listener subscribes to a cashier's transaction channel over the API's
// event stream and reports the first transaction event seen.
type Listener struct {
	baseURL string
	http    *http.Client
	tokens  session.TokenSource
	logger  *zap.Logger

	// WaitTimeout bounds a single Wait call. Zero means wait forever,
	// matching the flow's behavior of holding the processing indicator
	// until an event arrives.
	WaitTimeout time.Duration
}

func NewListener(baseURL string, httpClient *http.Client, tokens session.TokenSource, logger *zap.Logger) *Listener {
	if httpClient == nil {
		// No client timeout: the stream stays open between events
		httpClient = &http.Client{}
	}
	return &Listener{baseURL: baseURL, http: httpClient, tokens: tokens, logger: logger}
}

// Wait blocks until a transaction event arrives on transaction.<userID>,
// the context is cancelled, or WaitTimeout (when set) elapses.
func (l *Listener) Wait(ctx context.Context, userID string) (*Transaction, error) {
	if l.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, l.WaitTimeout, ErrWaitTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		l.baseURL+"/api/realtime/transaction."+userID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	token, err := l.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := l.http.Do(req)
	if err != nil {
		return nil, waitErr(ctx, fmt.Errorf("subscription failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, session.ErrSessionExpired
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("subscription rejected with status %d", resp.StatusCode)
	}

	tx, err := l.readStream(resp.Body)
	if err != nil {
		return nil, waitErr(ctx, err)
	}
	return tx, nil
}

// readStream scans server-sent event frames until a transaction event
// shows up. Heartbeat comments and unrelated events are skipped.
func (l *Listener) readStream(body io.Reader) (*Transaction, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event == eventTransactionReceived && data != "" {
				var tx Transaction
				if err := json.Unmarshal([]byte(data), &tx); err != nil {
					l.logger.Warn("Skipping malformed transaction event", zap.Error(err))
				} else {
					return &tx, nil
				}
			}
			event, data = "", ""
		case strings.HasPrefix(line, ":"):
			// heartbeat
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("event stream closed: %w", err)
	}
	return nil, errors.New("event stream ended before confirmation")
}

// waitErr prefers the timeout cause over the transport error the
// cancellation produced
func waitErr(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); errors.Is(cause, ErrWaitTimeout) {
		return ErrWaitTimeout
	}
	return err
}
