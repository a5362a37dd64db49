package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alexschlessinger/jurisearch/messages"
	"github.com/alexschlessinger/jurisearch/sessions"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Model:       defaultModel,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
		DataDir:     t.TempDir(),
		Quiet:       true,
	}
}

func TestSetupSessionStore(t *testing.T) {
	config := testConfig(t)
	store, err := setupSessionStore(config, routingSystemPrompt)
	if err != nil {
		t.Fatalf("setupSessionStore failed: %v", err)
	}
	if _, ok := store.(*sessions.SyncMapSessionStore); !ok {
		t.Errorf("Expected in-memory store without --context, got %T", store)
	}

	config.ContextID = "bail"
	store, err = setupSessionStore(config, routingSystemPrompt)
	if err != nil {
		t.Fatalf("setupSessionStore failed: %v", err)
	}
	if _, ok := store.(*sessions.FileSessionStore); !ok {
		t.Errorf("Expected file store with --context, got %T", store)
	}
}

func TestOpenSessionAppliesStoredSettings(t *testing.T) {
	config := testConfig(t)
	config.ContextID = "bail"
	store, err := setupSessionStore(config, routingSystemPrompt)
	if err != nil {
		t.Fatal(err)
	}

	session, err := openSession(store, config, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("openSession failed: %v", err)
	}
	if err := session.UpdateMetadata(&sessions.Metadata{Model: "gemini/gemini-2.5-flash"}); err != nil {
		t.Fatal(err)
	}
	session.AddMessage(messages.ChatMessage{Role: messages.MessageRoleUser, Content: "Bonjour"})
	session.Close()

	next := testConfig(t)
	next.ContextID = "bail"
	next.DataDir = config.DataDir
	session, err = openSession(store, next, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("openSession failed: %v", err)
	}
	defer session.Close()

	if next.Model != "gemini/gemini-2.5-flash" {
		t.Errorf("Expected stored model, got %s", next.Model)
	}
	if len(session.GetHistory()) != 2 {
		t.Errorf("Expected system prompt and one message, got %d messages", len(session.GetHistory()))
	}
}

func TestOpenSessionReset(t *testing.T) {
	config := testConfig(t)
	config.ContextID = "bail"
	store, err := setupSessionStore(config, routingSystemPrompt)
	if err != nil {
		t.Fatal(err)
	}

	session, err := openSession(store, config, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	session.AddMessage(messages.ChatMessage{Role: messages.MessageRoleUser, Content: "Bonjour"})
	session.Close()

	config.ResetContext = true
	session, err = openSession(store, config, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	history := session.GetHistory()
	if len(history) != 1 || history[0].Role != messages.MessageRoleSystem {
		t.Errorf("Expected only the system prompt after reset, got %d messages", len(history))
	}
}

func TestOpenSessionSystemPromptChange(t *testing.T) {
	config := testConfig(t)
	store, err := setupSessionStore(config, routingSystemPrompt)
	if err != nil {
		t.Fatal(err)
	}

	session, err := openSession(store, config, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	session.AddMessage(messages.ChatMessage{Role: messages.MessageRoleUser, Content: "Bonjour"})

	config.SystemPrompt = "Réponds en anglais."
	config.SystemPromptWasSet = true
	var errW bytes.Buffer
	session, err = openSession(store, config, &errW)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(errW.String(), "System prompt changed") {
		t.Errorf("Expected reset notice, got %q", errW.String())
	}
	history := session.GetHistory()
	if len(history) != 1 || history[0].Content != "Réponds en anglais." {
		t.Errorf("Expected new system prompt only, got %+v", history)
	}
}

func TestHandleListContexts(t *testing.T) {
	store, err := sessions.NewFileSessionStore(t.TempDir(), &sessions.Metadata{Model: defaultModel})
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := handleListContexts(&out, store); err != nil {
		t.Fatal(err)
	}
	if out.String() != "No contexts found\n" {
		t.Errorf("Expected empty listing, got %q", out.String())
	}

	session, err := store.Get("succession")
	if err != nil {
		t.Fatal(err)
	}
	if err := session.UpdateMetadata(&sessions.Metadata{TotalCost: 0.25, Turns: 3}); err != nil {
		t.Fatal(err)
	}
	session.Close()

	out.Reset()
	if err := handleListContexts(&out, store); err != nil {
		t.Fatal(err)
	}
	want := "succession [" + defaultModel + "] - 3 turns, 0.2500 $ - last used: just now *"
	if !strings.Contains(out.String(), want) {
		t.Errorf("Expected %q in listing, got %q", want, out.String())
	}
}
