package out

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ggonzalez94/lendkit/internal/model"
)

func TestRenderJSONResultsOnly(t *testing.T) {
	env := model.Envelope{
		Version: "v1",
		Success: true,
		Data:    model.AccountSnapshot{Address: "0xabc", HealthFactor: "1.333"},
		Meta:    model.EnvelopeMeta{Timestamp: time.Now()},
	}
	var buf bytes.Buffer
	if err := Render(&buf, env, Options{Mode: "json", ResultsOnly: true}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if out["health_factor"] != "1.333" {
		t.Fatalf("unexpected output: %s", buf.String())
	}
	if _, ok := out["success"]; ok {
		t.Fatalf("expected bare data payload: %s", buf.String())
	}
}

func TestRenderJSONEnvelope(t *testing.T) {
	env := model.Envelope{
		Version: "v1",
		Success: false,
		Error:   &model.ErrorBody{Code: 1, Type: "internal_error", Message: "boom"},
		Meta:    model.EnvelopeMeta{Command: "account", Timestamp: time.Now()},
	}
	var buf bytes.Buffer
	if err := Render(&buf, env, Options{Mode: "json"}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if out["success"] != false {
		t.Fatalf("expected success=false: %s", buf.String())
	}
}

func TestRenderPlain(t *testing.T) {
	env := model.Envelope{
		Version: "v1",
		Success: true,
		Data:    []map[string]any{{"name": "x", "score": 42}},
		Meta:    model.EnvelopeMeta{Timestamp: time.Now()},
	}
	var buf bytes.Buffer
	if err := Render(&buf, env, Options{Mode: "plain", ResultsOnly: true}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "name=x") {
		t.Fatalf("unexpected plain output: %s", buf.String())
	}
}
