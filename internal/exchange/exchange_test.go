package exchange

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shiva-rakshith/hcx-platform/pkg/broadcast"
	"github.com/shiva-rakshith/hcx-platform/pkg/claim"
	"github.com/shiva-rakshith/hcx-platform/pkg/protocol"
	"github.com/shiva-rakshith/hcx-platform/pkg/reliability"
	"github.com/shiva-rakshith/hcx-platform/pkg/security"
	"github.com/shiva-rakshith/hcx-platform/pkg/transport"
)

var (
	keysOnce  sync.Once
	nodeKey   *rsa.PrivateKey
	strangerK *rsa.PrivateKey
)

func testKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	keysOnce.Do(func() {
		var err error
		if nodeKey, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
			panic(err)
		}
		if strangerK, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
			panic(err)
		}
	})
	return nodeKey, strangerK
}

// fakePeer is an HCX gateway stand-in that opens every envelope it receives
type fakePeer struct {
	*httptest.Server
	key *rsa.PrivateKey

	calls  atomic.Int32
	status int

	mu       sync.Mutex
	received []received
}

type received struct {
	path     string
	headers  *protocol.ExchangeHeaders
	document map[string]any
}

func newFakePeer(t *testing.T, key *rsa.PrivateKey, status int) *fakePeer {
	t.Helper()
	p := &fakePeer{key: key, status: status}
	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.calls.Add(1)

		body, _ := io.ReadAll(r.Body)
		var req struct {
			Payload string `json:"payload"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		headers, plaintext, err := security.DecryptWithHeaders(p.key, security.Envelope(req.Payload))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var doc map[string]any
		_ = json.Unmarshal(plaintext, &doc)

		p.mu.Lock()
		p.received = append(p.received, received{path: r.URL.Path, headers: headers, document: doc})
		p.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(p.status)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"correlation_id": headers.CorrelationID,
			"api_call_id":    headers.APICallID,
		})
	}))
	t.Cleanup(p.Close)
	return p
}

func (p *fakePeer) last(t *testing.T) received {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.received)
	return p.received[len(p.received)-1]
}

type fixture struct {
	peer      *fakePeer
	submitter *Submitter
	callbacks *CallbackHandler
	tracker   *reliability.Tracker
	hub       *broadcast.Hub
	key       *rsa.PrivateKey
}

type fixtureOption func(*SubmitterConfig)

func withDefaultRecipient(code string) fixtureOption {
	return func(c *SubmitterConfig) { c.DefaultRecipient = code }
}

func newFixture(t *testing.T, peerStatus int, opts ...fixtureOption) *fixture {
	t.Helper()
	key, _ := testKeys(t)

	peer := newFakePeer(t, key, peerStatus)

	enc, err := security.NewEncryptor(&key.PublicKey)
	require.NoError(t, err)
	dec, err := security.NewDecryptor(key)
	require.NoError(t, err)

	tracker := reliability.NewTracker(time.Hour, time.Hour)
	t.Cleanup(tracker.Stop)

	hub := broadcast.NewHub()
	t.Cleanup(hub.Close)

	cfg := SubmitterConfig{
		Template:   claim.DefaultTemplate(),
		Headers:    protocol.NewHeaderBuilder(protocol.WithDefaultSender("hosp-01")),
		Encryptor:  enc,
		Dispatcher: transport.NewClient(peer.URL, nil),
		SubmitPath: protocol.OpPreauthSubmit.Path("v0.7"),
		Tracker:    tracker,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	submitter, err := NewSubmitter(cfg)
	require.NoError(t, err)

	callbacks, err := NewCallbackHandler(CallbackHandlerConfig{
		Decryptor: dec,
		Publisher: hub,
		Tracker:   tracker,
	})
	require.NoError(t, err)

	return &fixture{
		peer:      peer,
		submitter: submitter,
		callbacks: callbacks,
		tracker:   tracker,
		hub:       hub,
		key:       key,
	}
}

func amount(v float64) *claim.Amount {
	a := claim.Amount(v)
	return &a
}
