package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func testMessage() Message {
	return Message{
		Recipient: Recipient{PushKey: "push-key-1", Phone: "+254700000001"},
		Title:     "Medication Reminder",
		Body:      "Time to take Amoxicillin (500mg)",
	}
}

func TestGateway_FirstChannelSucceeds(t *testing.T) {
	push := &MockChannel{ChannelName: ChannelPush}
	sms := &MockChannel{ChannelName: ChannelSMS}
	g := NewGateway(testLogger(), time.Second, push, sms)

	channel, err := g.Deliver(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if channel != ChannelPush {
		t.Errorf("expected push channel, got %s", channel)
	}
	if len(push.Calls()) != 1 {
		t.Errorf("expected 1 push call, got %d", len(push.Calls()))
	}
	if len(sms.Calls()) != 0 {
		t.Errorf("expected no sms calls, got %d", len(sms.Calls()))
	}
}

func TestGateway_FallsBackToSecondChannel(t *testing.T) {
	push := &MockChannel{ChannelName: ChannelPush, ShouldFail: true, FailError: "provider down"}
	sms := &MockChannel{ChannelName: ChannelSMS}
	g := NewGateway(testLogger(), time.Second, push, sms)

	channel, err := g.Deliver(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if channel != ChannelSMS {
		t.Errorf("expected sms channel after push failure, got %s", channel)
	}
	if len(push.Calls()) != 1 {
		t.Errorf("expected 1 push attempt, got %d", len(push.Calls()))
	}
	if len(sms.Calls()) != 1 {
		t.Errorf("expected 1 sms call, got %d", len(sms.Calls()))
	}
}

func TestGateway_AllChannelsFail(t *testing.T) {
	push := &MockChannel{ChannelName: ChannelPush, ShouldFail: true, FailError: "push down"}
	sms := &MockChannel{ChannelName: ChannelSMS, ShouldFail: true, FailError: "sms down"}
	g := NewGateway(testLogger(), time.Second, push, sms)

	_, err := g.Deliver(context.Background(), testMessage())
	if err != ErrAllChannelsFailed {
		t.Fatalf("expected ErrAllChannelsFailed, got %v", err)
	}
}

func TestGateway_NoChannels(t *testing.T) {
	g := NewGateway(testLogger(), time.Second)

	_, err := g.Deliver(context.Background(), testMessage())
	if err != ErrAllChannelsFailed {
		t.Fatalf("expected ErrAllChannelsFailed, got %v", err)
	}
}

func TestGateway_SlowChannelTimesOutAndFallsBack(t *testing.T) {
	push := &MockChannel{ChannelName: ChannelPush, Delay: 500 * time.Millisecond}
	sms := &MockChannel{ChannelName: ChannelSMS}
	g := NewGateway(testLogger(), 20*time.Millisecond, push, sms)

	channel, err := g.Deliver(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if channel != ChannelSMS {
		t.Errorf("expected fallback to sms after push timeout, got %s", channel)
	}
}

func TestGateway_ParentContextCancelled(t *testing.T) {
	push := &MockChannel{ChannelName: ChannelPush, ShouldFail: true, FailError: "down"}
	sms := &MockChannel{ChannelName: ChannelSMS}
	g := NewGateway(testLogger(), time.Second, push, sms)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Deliver(ctx, testMessage())
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestPushChannel_NoPushKey(t *testing.T) {
	ch := NewPushChannel("app-token")
	err := ch.Send(context.Background(), Message{
		Recipient: Recipient{Phone: "+254700000001"},
		Body:      "hello",
	})
	if err != ErrNoPushKey {
		t.Fatalf("expected ErrNoPushKey, got %v", err)
	}
}

func TestSMSChannel_NoPhone(t *testing.T) {
	ch := NewSMSChannel(SMSConfig{APIKey: "key", Username: "sandbox"})
	err := ch.Send(context.Background(), Message{
		Recipient: Recipient{PushKey: "push-key-1"},
		Body:      "hello",
	})
	if err != ErrNoPhone {
		t.Fatalf("expected ErrNoPhone, got %v", err)
	}
}

func TestSMSChannel_SendsForm(t *testing.T) {
	var gotAPIKey, gotTo, gotMessage, gotUsername string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotAPIKey = r.Header.Get("apiKey")
		gotTo = r.FormValue("to")
		gotMessage = r.FormValue("message")
		gotUsername = r.FormValue("username")

		resp := smsResponse{}
		resp.SMSMessageData.Recipients = []struct {
			Number     string `json:"number"`
			Status     string `json:"status"`
			StatusCode int    `json:"statusCode"`
		}{
			{Number: gotTo, Status: "Success", StatusCode: 101},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	ch := NewSMSChannel(SMSConfig{APIKey: "test-key", Username: "sandbox", SenderID: "MEDS"})
	ch.apiURL = srv.URL

	err := ch.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAPIKey != "test-key" {
		t.Errorf("expected apiKey header test-key, got %q", gotAPIKey)
	}
	if gotTo != "+254700000001" {
		t.Errorf("expected to +254700000001, got %q", gotTo)
	}
	if gotMessage == "" {
		t.Error("expected message body to be sent")
	}
	if gotUsername != "sandbox" {
		t.Errorf("expected username sandbox, got %q", gotUsername)
	}
}

func TestSMSChannel_ProviderRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := smsResponse{}
		resp.SMSMessageData.Recipients = []struct {
			Number     string `json:"number"`
			Status     string `json:"status"`
			StatusCode int    `json:"statusCode"`
		}{
			{Number: "+254700000001", Status: "InsufficientBalance", StatusCode: 405},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	ch := NewSMSChannel(SMSConfig{APIKey: "test-key", Username: "sandbox"})
	ch.apiURL = srv.URL

	if err := ch.Send(context.Background(), testMessage()); err == nil {
		t.Fatal("expected error for rejected message")
	}
}

func TestSMSChannel_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ch := NewSMSChannel(SMSConfig{APIKey: "test-key", Username: "sandbox"})
	ch.apiURL = srv.URL

	if err := ch.Send(context.Background(), testMessage()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
