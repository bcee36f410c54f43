package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Perceptus-Labs/samvaad-go-sdk/models"
)

func TestGestureAPIClient_Recognize(t *testing.T) {
	t.Parallel()

	var gotImage string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotImage = body["image"]
		w.Write([]byte(`{"gesture":"Hello","translation_hi":"नमस्ते"}`))
	}))
	defer server.Close()

	client := NewGestureAPIClient(server.URL, time.Second)
	result, err := client.Recognize(context.Background(), models.Snapshot{Data: []byte("jpeg")})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}

	if !strings.HasPrefix(gotImage, "data:image/jpeg;base64,") {
		t.Errorf("expected a data URL, got %q", gotImage)
	}
	if result.Gesture != "Hello" || result.TranslationHi != "नमस्ते" {
		t.Errorf("unexpected result %+v", result)
	}
	if result.TranslationEn != "Hello" {
		t.Errorf("expected translation_en to default to the gesture, got %q", result.TranslationEn)
	}
}

func TestGestureAPIClient_RecognizeNoGesture(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"gesture":"No gesture","translation_en":"No gesture"}`))
	}))
	defer server.Close()

	result, err := NewGestureAPIClient(server.URL, time.Second).Recognize(context.Background(), models.Snapshot{})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if result.HasGesture() {
		t.Error("sentinel response must not carry a gesture")
	}
}

func TestGestureAPIClient_RecognizeServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer server.Close()

	_, err := NewGestureAPIClient(server.URL, time.Second).Recognize(context.Background(), models.Snapshot{})
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected a status 500 error, got %v", err)
	}
}

func TestGestureAPIClient_RecognizeMalformed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	if _, err := NewGestureAPIClient(server.URL, time.Second).Recognize(context.Background(), models.Snapshot{}); err == nil {
		t.Fatal("expected a decode error")
	}
}

func TestGestureAPIClient_RefineAliasPriority(t *testing.T) {
	t.Parallel()

	responses := map[string]string{
		"primary":  `{"english_sentence":"Hello there.","refined":"ignored","hindi_translation":"नमस्ते।","hi":"ignored"}`,
		"fallback": `{"refined":"  ","english":"I need water.","hindi":"मुझे पानी चाहिए।"}`,
		"last":     `{"en":"Yes.","hi":"हाँ।"}`,
		"empty":    `{"message":"Waiting for valid gesture"}`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(responses[body["gesture"]]))
	}))
	defer server.Close()

	client := NewGestureAPIClient(server.URL, time.Second)
	cases := []struct {
		gesture, english, hindi string
	}{
		{"primary", "Hello there.", "नमस्ते।"},
		{"fallback", "I need water.", "मुझे पानी चाहिए।"},
		{"last", "Yes.", "हाँ।"},
		{"empty", "", ""},
	}
	for _, c := range cases {
		result, err := client.Refine(context.Background(), c.gesture)
		if err != nil {
			t.Fatalf("Refine(%s) failed: %v", c.gesture, err)
		}
		if result.English != c.english || result.Hindi != c.hindi {
			t.Errorf("Refine(%s) = %+v, want english=%q hindi=%q", c.gesture, result, c.english, c.hindi)
		}
	}

	empty, _ := client.Refine(context.Background(), "empty")
	if !empty.Empty() {
		t.Error("expected an all-missing response to be empty")
	}
}

func TestGestureAPIClient_Health(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"status":"OK"}`))
	}))
	defer server.Close()

	if err := NewGestureAPIClient(server.URL+"/", time.Second).Health(context.Background()); err != nil {
		t.Fatalf("Health failed: %v", err)
	}
}
