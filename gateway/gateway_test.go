package gateway

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/notify/broker"
	"github.com/kbukum/notify/broker/brokertest"
	"github.com/kbukum/notify/envelope"
	"github.com/kbukum/notify/errors"
	"github.com/kbukum/notify/logger"
	"github.com/kbukum/notify/resilience"
	"github.com/kbukum/notify/validation"
)

type countingBroker struct {
	broker.Broker
	publishes atomic.Int32
	err       error
}

func (b *countingBroker) Publish(ctx context.Context, channel string, msg []byte) error {
	b.publishes.Add(1)
	if b.err != nil {
		return b.err
	}
	if b.Broker == nil {
		return nil
	}
	return b.Broker.Publish(ctx, channel, msg)
}

// recorder implements Store and Notifier.
type recorder struct {
	mu      sync.Mutex
	saved   []envelope.Envelope
	pushed  []envelope.Envelope
	fail    error
	failFor int
	calls   int
	block   chan struct{}
}

func (r *recorder) attempt() error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.fail != nil && (r.failFor == 0 || r.calls <= r.failFor) {
		return r.fail
	}
	return nil
}

func (r *recorder) Save(_ context.Context, env envelope.Envelope) error {
	if err := r.attempt(); err != nil {
		return err
	}
	r.mu.Lock()
	r.saved = append(r.saved, env)
	r.mu.Unlock()
	return nil
}

func (r *recorder) NotifyIfOffline(_ context.Context, env envelope.Envelope) error {
	if err := r.attempt(); err != nil {
		return err
	}
	r.mu.Lock()
	r.pushed = append(r.pushed, env)
	r.mu.Unlock()
	return nil
}

func (r *recorder) counts() (saved, pushed, calls int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved), len(r.pushed), r.calls
}

var fastRetry = resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}

func validRequest() Request {
	return Request{Type: "comment", RecipientID: "42", Data: json.RawMessage(`{"text":"hi"}`)}
}

func closeGateway(t *testing.T, g *Gateway) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := g.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestPublishDeliversEnvelope(t *testing.T) {
	mem := broker.NewMemory(logger.NewNop())
	defer mem.Close()
	sub, err := mem.Subscribe(context.Background(), broker.ChannelFor("42"))
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	g := New(mem)
	req := validRequest()
	req.Permalink = "/posts/7"
	env, err := g.Publish(context.Background(), req)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if env.ID == "" || env.CreatedAt.IsZero() || env.CreatedAt.Location() != time.UTC {
		t.Errorf("envelope not stamped: %+v", env)
	}

	var got envelope.Envelope
	if err := json.Unmarshal(brokertest.Receive(t, sub), &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != env.ID || got.Type != "comment" || got.RecipientID != "42" || got.Permalink != "/posts/7" {
		t.Errorf("unexpected envelope on the wire: %+v", got)
	}
	if string(got.Data) != `{"text":"hi"}` {
		t.Errorf("data altered: %s", got.Data)
	}
}

func TestPublishValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Request)
		field  string
	}{
		{"missing type", func(r *Request) { r.Type = "" }, "type"},
		{"blank type", func(r *Request) { r.Type = "   " }, "type"},
		{"type too long", func(r *Request) { r.Type = strings.Repeat("x", 65) }, "type"},
		{"type with line feed", func(r *Request) { r.Type = "a\nb" }, "type"},
		{"type with carriage return", func(r *Request) { r.Type = "a\rb" }, "type"},
		{"type with nul", func(r *Request) { r.Type = "a\x00b" }, "type"},
		{"recipient with line feed", func(r *Request) { r.RecipientID = "4\n2" }, "recipient_id"},
		{"permalink too long", func(r *Request) { r.Permalink = strings.Repeat("p", 2049) }, "permalink"},
		{"missing recipient", func(r *Request) { r.RecipientID = "" }, "recipient_id"},
		{"missing data", func(r *Request) { r.Data = nil }, "data"},
		{"empty data", func(r *Request) { r.Data = json.RawMessage("  ") }, "data"},
		{"null data", func(r *Request) { r.Data = json.RawMessage("null") }, "data"},
		{"invalid data", func(r *Request) { r.Data = json.RawMessage("{") }, "data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &countingBroker{}
			g := New(b)
			req := validRequest()
			tt.modify(&req)

			_, err := g.Publish(context.Background(), req)
			appErr, ok := errors.AsAppError(err)
			if !ok {
				t.Fatalf("expected AppError, got %v", err)
			}
			if appErr.Code != errors.ErrCodeInvalidInput || appErr.HTTPStatus != http.StatusBadRequest {
				t.Errorf("unexpected error %+v", appErr)
			}
			if !strings.Contains(appErr.Message, tt.field) {
				t.Errorf("message %q does not name %s", appErr.Message, tt.field)
			}
			if b.publishes.Load() != 0 {
				t.Error("invalid request reached the broker")
			}
		})
	}
}

func TestRequestValidateFieldDetails(t *testing.T) {
	err := Request{Type: "a\nb", Data: json.RawMessage("null")}.Validate()
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %v", err)
	}
	fields, ok := appErr.Details["fields"].([]validation.FieldError)
	if !ok {
		t.Fatalf("expected field details, got %T", appErr.Details["fields"])
	}
	want := []validation.FieldError{
		{Field: "type", Message: "must not contain control characters"},
		{Field: "recipient_id", Message: "is required"},
		{Field: "data", Message: "is required"},
	}
	if len(fields) != len(want) {
		t.Fatalf("fields = %+v, want %+v", fields, want)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("fields[%d] = %+v, want %+v", i, fields[i], want[i])
		}
	}
}

func TestRequestValidateNilDataReportedOnce(t *testing.T) {
	err := Request{Type: "comment", RecipientID: "42"}.Validate()
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Message != "data: is required" {
		t.Errorf("message = %q", appErr.Message)
	}
}

func TestPublishTypeLengthBoundary(t *testing.T) {
	g := New(&countingBroker{})
	req := validRequest()
	req.Type = strings.Repeat("é", MaxTypeLength)
	if _, err := g.Publish(context.Background(), req); err != nil {
		t.Fatalf("64-character type rejected: %v", err)
	}
}

func TestPublishBrokerFailure(t *testing.T) {
	cause := stderrors.New("connection refused")
	rec := &recorder{}
	g := New(&countingBroker{err: cause}, WithStore(rec), WithNotifier(rec))

	req := validRequest()
	req.Persistent = true
	_, err := g.Publish(context.Background(), req)
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeServiceUnavailable || appErr.HTTPStatus != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 AppError, got %v", err)
	}
	if !stderrors.Is(err, cause) {
		t.Error("cause not preserved")
	}

	closeGateway(t, g)
	if _, _, calls := rec.counts(); calls != 0 {
		t.Errorf("side effects ran for a failed publish: %d calls", calls)
	}
}

func TestSideEffects(t *testing.T) {
	store, push := &recorder{}, &recorder{}
	g := New(&countingBroker{}, WithStore(store), WithNotifier(push), WithRetry(fastRetry))

	transient := validRequest()
	persistent := validRequest()
	persistent.Persistent = true

	if _, err := g.Publish(context.Background(), transient); err != nil {
		t.Fatal(err)
	}
	env, err := g.Publish(context.Background(), persistent)
	if err != nil {
		t.Fatal(err)
	}
	closeGateway(t, g)

	saved, _, _ := store.counts()
	_, pushed, _ := push.counts()
	if saved != 1 {
		t.Errorf("expected only the persistent event stored, got %d", saved)
	}
	if store.saved[0].ID != env.ID {
		t.Errorf("stored %s, want %s", store.saved[0].ID, env.ID)
	}
	if pushed != 2 {
		t.Errorf("expected push attempted for every event, got %d", pushed)
	}
}

func TestSideEffectFailureDoesNotAffectPublish(t *testing.T) {
	store := &recorder{fail: stderrors.New("disk full")}
	g := New(&countingBroker{}, WithStore(store), WithRetry(fastRetry))

	req := validRequest()
	req.Persistent = true
	if _, err := g.Publish(context.Background(), req); err != nil {
		t.Fatalf("side effect failure leaked into publish: %v", err)
	}
	closeGateway(t, g)
	if _, _, calls := store.counts(); calls != fastRetry.MaxAttempts {
		t.Errorf("expected %d attempts, got %d", fastRetry.MaxAttempts, calls)
	}
}

func TestSideEffectRetrySucceeds(t *testing.T) {
	store := &recorder{fail: stderrors.New("busy"), failFor: 1}
	g := New(&countingBroker{}, WithStore(store), WithRetry(fastRetry))

	req := validRequest()
	req.Persistent = true
	if _, err := g.Publish(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	closeGateway(t, g)
	if saved, _, calls := store.counts(); saved != 1 || calls != 2 {
		t.Errorf("saved=%d calls=%d, want 1 and 2", saved, calls)
	}
}

func TestSideEffectsOutliveRequestContext(t *testing.T) {
	store := &recorder{block: make(chan struct{})}
	g := New(&countingBroker{}, WithStore(store))

	ctx, cancel := context.WithCancel(context.Background())
	req := validRequest()
	req.Persistent = true
	if _, err := g.Publish(ctx, req); err != nil {
		t.Fatal(err)
	}
	cancel()
	close(store.block)
	closeGateway(t, g)

	if saved, _, _ := store.counts(); saved != 1 {
		t.Fatal("side effect canceled with the request")
	}
}

func TestSideEffectTimeout(t *testing.T) {
	store := &recorder{}
	slow := storeFunc(func(ctx context.Context, _ envelope.Envelope) error {
		<-ctx.Done()
		return ctx.Err()
	})
	g := New(&countingBroker{}, WithStore(slow), WithNotifier(store), WithSideEffectTimeout(20*time.Millisecond))

	req := validRequest()
	req.Persistent = true
	start := time.Now()
	if _, err := g.Publish(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	closeGateway(t, g)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("side effect ignored its timeout, took %s", elapsed)
	}
}

type storeFunc func(context.Context, envelope.Envelope) error

func (f storeFunc) Save(ctx context.Context, env envelope.Envelope) error { return f(ctx, env) }

func TestSideEffectPanicRecovered(t *testing.T) {
	boom := storeFunc(func(context.Context, envelope.Envelope) error { panic("boom") })
	g := New(&countingBroker{}, WithStore(boom), WithRetry(resilience.RetryConfig{MaxAttempts: 1}))

	req := validRequest()
	req.Persistent = true
	if _, err := g.Publish(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	closeGateway(t, g)
}

func TestCloseBoundedByContext(t *testing.T) {
	store := &recorder{block: make(chan struct{})}
	defer close(store.block)
	g := New(&countingBroker{}, WithStore(store))

	req := validRequest()
	req.Persistent = true
	if _, err := g.Publish(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := g.Close(ctx); !stderrors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestPublishAfterCloseSkipsSideEffects(t *testing.T) {
	store := &recorder{}
	g := New(&countingBroker{}, WithStore(store))
	closeGateway(t, g)

	req := validRequest()
	req.Persistent = true
	if _, err := g.Publish(context.Background(), req); err != nil {
		t.Fatalf("publish after close failed: %v", err)
	}
	closeGateway(t, g)
	if _, _, calls := store.counts(); calls != 0 {
		t.Errorf("side effect ran after close")
	}
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.SideEffectTimeout() != 10*time.Second {
		t.Errorf("timeout = %s", cfg.SideEffectTimeout())
	}
	cfg.SideEffectTimeoutSeconds = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error")
	}
}
