// Copyright (c) 2025 BVK Chaitanya

package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/bvkgo/kv/kvmemdb"
	"github.com/go-telegram/bot/models"
)

var testingSecrets *Secrets

func checkSecrets() bool {
	if testingSecrets != nil {
		return true
	}
	data, err := os.ReadFile("telegram-creds.json")
	if err != nil {
		return false
	}
	s := new(Secrets)
	if err := json.Unmarshal(data, s); err != nil {
		return false
	}
	if err := s.Check(); err != nil {
		return false
	}
	testingSecrets = s
	return true
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	if !checkSecrets() {
		t.Skip("no credentials")
		return
	}

	db := kvmemdb.New()
	c, err := New(ctx, db, testingSecrets, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			t.Fatal(err)
		}
	}()

	t.Logf("Authorized on account %s", c.BotUserName())

	msg := "<b>hello</b> from " + time.Now().Format(time.RFC3339)
	if err := c.SendHTML(ctx, c.ChannelID(), msg); err != nil {
		t.Fatal(err)
	}
}

func botCommand(text string, length int) []models.MessageEntity {
	return []models.MessageEntity{{
		Type:   models.MessageEntityTypeBotCommand,
		Offset: 0,
		Length: length,
	}}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text     string
		entities []models.MessageEntity
		name     string
		args     []string
		err      error
	}{
		{"/prices", botCommand("/prices", 7), "prices", nil, nil},
		{"/start  now please", botCommand("/start", 6), "start", []string{"now", "please"}, nil},
		{"/Prices@PriceBot", botCommand("/Prices@PriceBot", 16), "prices", nil, nil},
		{"/prices@pricebot x", botCommand("/prices@pricebot", 16), "prices", []string{"x"}, nil},
		{"/prices@OtherBot", botCommand("/prices@OtherBot", 16), "", nil, nil},
		{"hello", nil, "", nil, errNotCommand},
		{"/prices", []models.MessageEntity{{Type: models.MessageEntityTypeBold, Length: 7}}, "", nil, errNotCommand},
		{"see /prices", []models.MessageEntity{{Type: models.MessageEntityTypeBotCommand, Offset: 4, Length: 7}}, "", nil, errNotCommand},
		{"/", botCommand("/", 1), "", nil, errNotCommand},
	}

	for i, test := range tests {
		name, args, err := parseCommand(test.text, test.entities, "PriceBot")
		if !errors.Is(err, test.err) {
			t.Errorf("%d: %q: want error %v, got %v", i, test.text, test.err, err)
			continue
		}
		if name != test.name {
			t.Errorf("%d: %q: want command %q, got %q", i, test.text, test.name, name)
		}
		if !slices.Equal(args, test.args) {
			t.Errorf("%d: %q: want args %v, got %v", i, test.text, test.args, args)
		}
	}
}

func TestSecrets(t *testing.T) {
	good := []*Secrets{
		{BotToken: "x", ChannelID: "@prices"},
		{BotToken: "x", ChannelID: "-1001234567890"},
	}
	for _, s := range good {
		if err := s.Check(); err != nil {
			t.Errorf("%#v: %v", s, err)
		}
	}
	if id, ok := good[1].ChatID().(int64); !ok || id != -1001234567890 {
		t.Errorf("want numeric chat id, got %#v", good[1].ChatID())
	}
	if id, ok := good[0].ChatID().(string); !ok || id != "@prices" {
		t.Errorf("want channel username, got %#v", good[0].ChatID())
	}

	bad := []*Secrets{
		{ChannelID: "@prices"},
		{BotToken: "x"},
		{BotToken: "x", ChannelID: "prices"},
	}
	for _, s := range bad {
		if err := s.Check(); err == nil {
			t.Errorf("%#v: want error", s)
		}
	}
}

func TestOptions(t *testing.T) {
	opts := new(Options)
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		t.Fatal(err)
	}
	if opts.SendTimeout != 15*time.Second || opts.SendAttempts != 3 {
		t.Fatalf("unexpected defaults %#v", opts)
	}

	bad := &Options{SendTimeout: time.Second, SendAttempts: 1, SendRetryInterval: time.Minute, SendMaxRetryInterval: time.Second}
	if err := bad.Check(); err == nil {
		t.Fatalf("want error for retry interval larger than the max")
	}
}
