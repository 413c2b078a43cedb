package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/timebank/internal/ledger"
	"github.com/dukerupert/timebank/internal/model"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

func testSubscription(t *testing.T, endpoint string) *model.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		t.Fatalf("auth secret: %v", err)
	}
	return &model.PushSubscription{
		UserID:     "student-1",
		Endpoint:   endpoint,
		P256dhKey:  base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		AuthKey:    base64.RawURLEncoding.EncodeToString(secret),
		DeviceName: "phone",
	}
}

func testService(t *testing.T, srv *httptest.Server) *Service {
	t.Helper()
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}
	s := NewService(pub, priv, "admin@timebank.local")
	s.client = srv.Client()
	return s
}

func TestServiceSend(t *testing.T) {
	var gotAuth, gotTTL, gotEncoding string
	var bodyLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTTL = r.Header.Get("TTL")
		gotEncoding = r.Header.Get("Content-Encoding")
		b, _ := io.ReadAll(r.Body)
		bodyLen = len(b)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := testService(t, srv)
	err := s.Send(context.Background(), testSubscription(t, srv.URL+"/push/abc"), Payload{Title: "Hi", Body: "there"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if !strings.HasPrefix(gotAuth, "vapid t=") {
		t.Errorf("authorization = %q, want vapid scheme", gotAuth)
	}
	if gotTTL != "86400" {
		t.Errorf("TTL = %q, want 86400", gotTTL)
	}
	if gotEncoding != "aes128gcm" {
		t.Errorf("content-encoding = %q, want aes128gcm", gotEncoding)
	}
	if bodyLen == 0 {
		t.Error("expected encrypted body")
	}
}

func TestServiceSendUrgentShortLived(t *testing.T) {
	var gotTTL, gotUrgency string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTTL = r.Header.Get("TTL")
		gotUrgency = r.Header.Get("Urgency")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := testService(t, srv)
	p := Payload{Title: "Penalty", Urgent: true, TTL: time.Hour}
	if err := s.Send(context.Background(), testSubscription(t, srv.URL), p); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotTTL != "3600" {
		t.Errorf("TTL = %q, want 3600", gotTTL)
	}
	if gotUrgency != "high" {
		t.Errorf("Urgency = %q, want high", gotUrgency)
	}
}

func TestServiceSendExpired(t *testing.T) {
	for _, status := range []int{http.StatusGone, http.StatusNotFound} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		s := testService(t, srv)
		err := s.Send(context.Background(), testSubscription(t, srv.URL), Payload{Title: "Hi"})
		if !errors.Is(err, ErrExpired) {
			t.Errorf("status %d: err = %v, want ErrExpired", status, err)
		}
		srv.Close()
	}
}

func TestServiceSendServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream down")
	}))
	defer srv.Close()

	s := testService(t, srv)
	err := s.Send(context.Background(), testSubscription(t, srv.URL), Payload{Title: "Hi"})
	if err == nil || errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want non-expired failure", err)
	}
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %T, want *StatusError", err)
	}
	if se.Code != http.StatusBadGateway || se.Body != "upstream down" {
		t.Errorf("status error = %+v", se)
	}
}

// fakes

type sentPush struct {
	endpoint string
	payload  Payload
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sentPush
	results map[string]error
}

func (f *fakeSender) Send(_ context.Context, sub *model.PushSubscription, p Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.results[sub.Endpoint]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentPush{endpoint: sub.Endpoint, payload: p})
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeSubs struct {
	mu      sync.Mutex
	subs    map[string][]model.PushSubscription
	sent    map[string]bool
	deleted []string
	cleaned bool
}

func newFakeSubs() *fakeSubs {
	return &fakeSubs{subs: map[string][]model.PushSubscription{}, sent: map[string]bool{}}
}

func (f *fakeSubs) add(userID, endpoint string) {
	f.subs[userID] = append(f.subs[userID], model.PushSubscription{UserID: userID, Endpoint: endpoint, DeviceName: endpoint})
}

func (f *fakeSubs) ListByUser(_ context.Context, userID string) ([]model.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.PushSubscription(nil), f.subs[userID]...), nil
}

func (f *fakeSubs) DeleteByEndpoint(_ context.Context, endpoint, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, endpoint)
	return nil
}

func (f *fakeSubs) RecordSent(_ context.Context, userID, notifType, refID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[userID+"|"+notifType+"|"+refID] = true
	return nil
}

func (f *fakeSubs) WasSent(_ context.Context, userID, notifType, refID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[userID+"|"+notifType+"|"+refID], nil
}

func (f *fakeSubs) CleanupSent(context.Context, time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleaned = true
	return nil
}

type fakeParents map[string][]model.User

func (f fakeParents) ListParents(_ context.Context, code string) ([]model.User, error) {
	return f[code], nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyUserRemovesExpired(t *testing.T) {
	subs := newFakeSubs()
	subs.add("u1", "https://push/ok")
	subs.add("u1", "https://push/gone")
	subs.add("u1", "https://push/broken")
	s := &fakeSender{results: map[string]error{
		"https://push/gone":   ErrExpired,
		"https://push/broken": errors.New("boom"),
	}}

	n := NewNotifier(s, subs, fakeParents{}, quietLogger())
	err := n.NotifyUser(context.Background(), "u1", Payload{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v, want the broken device failure", err)
	}
	if s.count() != 1 {
		t.Errorf("sent = %d, want 1", s.count())
	}
	if len(subs.deleted) != 1 || subs.deleted[0] != "https://push/gone" {
		t.Errorf("deleted = %v, want only the expired endpoint", subs.deleted)
	}
}

func TestNotifierPendingActivityGoesToParents(t *testing.T) {
	subs := newFakeSubs()
	subs.add("mom", "https://push/mom")
	subs.add("dad", "https://push/dad")
	subs.add("kid", "https://push/kid")
	s := &fakeSender{}
	parents := fakeParents{"ABC123": {{ID: "mom"}, {ID: "dad"}}}

	n := NewNotifier(s, subs, parents, quietLogger())
	ev := ledger.ChangeEvent{
		Kind:       ledger.KindActivityCreated,
		UserID:     "kid",
		FamilyCode: "ABC123",
		Activity: &model.Activity{
			ID: "a1", UserID: "kid", Category: "coding", EarnedMinutes: 120, Status: model.StatusPending,
		},
	}
	n.Publish(context.Background(), ev)
	n.Publish(context.Background(), ev)
	n.Wait()

	if s.count() != 2 {
		t.Fatalf("sent = %d, want 2 (one per parent, deduplicated)", s.count())
	}
	for _, p := range s.sent {
		if p.endpoint == "https://push/kid" {
			t.Error("student should not be notified of own pending activity")
		}
		if !strings.Contains(p.payload.Body, "Coding / AI") {
			t.Errorf("body = %q, want category label", p.payload.Body)
		}
	}
}

func TestNotifierSkipsApprovedAndUnrelatedEvents(t *testing.T) {
	subs := newFakeSubs()
	subs.add("mom", "https://push/mom")
	s := &fakeSender{}
	n := NewNotifier(s, subs, fakeParents{"ABC123": {{ID: "mom"}}}, quietLogger())

	n.Publish(context.Background(), ledger.ChangeEvent{
		Kind: ledger.KindActivityCreated, FamilyCode: "ABC123",
		Activity: &model.Activity{ID: "a1", Category: "game", Status: model.StatusApproved},
	})
	n.Publish(context.Background(), ledger.ChangeEvent{Kind: ledger.KindScheduleCompleted, FamilyCode: "ABC123"})
	n.Wait()

	if s.count() != 0 {
		t.Errorf("sent = %d, want 0", s.count())
	}
}

func TestNotifierReviewAndPenaltyGoToStudent(t *testing.T) {
	subs := newFakeSubs()
	subs.add("kid", "https://push/kid")
	s := &fakeSender{}
	n := NewNotifier(s, subs, fakeParents{}, quietLogger())

	n.Publish(context.Background(), ledger.ChangeEvent{
		Kind: ledger.KindActivityRejected, UserID: "kid",
		Activity: &model.Activity{ID: "a1", UserID: "kid", Category: "reading", EarnedMinutes: 45, RejectReason: "no report"},
	})
	n.Publish(context.Background(), ledger.ChangeEvent{
		Kind: ledger.KindPenaltyIssued, UserID: "kid", Balance: -20,
		Activity: &model.Activity{ID: "p1", UserID: "kid", Category: "lying", EarnedMinutes: 600},
	})
	n.Wait()

	if s.count() != 2 {
		t.Fatalf("sent = %d, want 2", s.count())
	}
	bodies := s.sent[0].payload.Body + "\n" + s.sent[1].payload.Body
	if !strings.Contains(bodies, "rejected: no report") {
		t.Errorf("bodies = %q, want reject reason", bodies)
	}
	if !strings.Contains(bodies, "Balance is now -20") {
		t.Errorf("bodies = %q, want penalty balance", bodies)
	}
	for _, m := range s.sent {
		if urgent := strings.HasPrefix(m.payload.Tag, "penalty-"); m.payload.Urgent != urgent {
			t.Errorf("%s: urgent = %v, want %v", m.payload.Tag, m.payload.Urgent, urgent)
		}
	}
}

type fakeSource struct {
	unmarked map[string][]model.Schedule
	calls    int
}

func (f *fakeSource) Unmarked(context.Context, string) (map[string][]model.Schedule, error) {
	f.calls++
	return f.unmarked, nil
}

func (f *fakeSource) Location() *time.Location {
	return time.UTC
}

func TestSchedulerRemindsOncePerDay(t *testing.T) {
	subs := newFakeSubs()
	subs.add("kid", "https://push/kid")
	s := &fakeSender{}
	n := NewNotifier(s, subs, fakeParents{}, quietLogger())
	src := &fakeSource{unmarked: map[string][]model.Schedule{
		"kid": {{ID: "s1", Name: "Piano"}, {ID: "s2", Name: "Math academy"}},
	}}

	sched := NewScheduler(n, src, 20, quietLogger())
	sched.now = func() time.Time { return time.Date(2026, 3, 4, 19, 0, 0, 0, time.UTC) }

	got, err := sched.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run before hour: %v", err)
	}
	if got != 0 || src.calls != 0 {
		t.Errorf("before reminder hour: reminded %d, source calls %d", got, src.calls)
	}

	sched.now = func() time.Time { return time.Date(2026, 3, 4, 20, 30, 0, 0, time.UTC) }
	got, err = sched.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != 1 {
		t.Errorf("reminded = %d, want 1", got)
	}
	if s.count() != 1 || !strings.Contains(s.sent[0].payload.Body, "Math academy, Piano") {
		t.Errorf("sent = %+v", s.sent)
	}
	if !subs.cleaned {
		t.Error("expected sent-notification cleanup")
	}

	got, _ = sched.RunOnce(context.Background())
	if got != 0 || s.count() != 1 {
		t.Errorf("second run reminded %d, sent %d; want no repeat", got, s.count())
	}
}
