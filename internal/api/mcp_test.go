package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/pbaille/nutriscan/internal/domain"
)

// toolText calls a tool and decodes the JSON text of its first content item
func toolText(t *testing.T, resp *http.Response, out map[string]interface{}) map[string]interface{} {
	t.Helper()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %v", resp.StatusCode, out)
	}
	content := out["content"].([]interface{})
	text := content[0].(map[string]interface{})["text"].(string)

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		t.Fatal(err)
	}
	return payload
}

func TestToolAggregateFoods(t *testing.T) {
	ts := newTestServer(t, constModel(3))

	resp, out := do(t, ts, "POST", "/mcp", "", map[string]interface{}{
		"name": "aggregate_foods",
		"arguments": map[string]interface{}{
			"foods":     []string{"rice", "curd", "spinach", "pizza"},
			"allergies": []string{"curd"},
		},
	})
	payload := toolText(t, resp, out)

	if payload["food_score"].(float64) != 111 {
		t.Errorf("food_score = %v, want 111", payload["food_score"])
	}
	if notices := payload["notices"].([]interface{}); len(notices) != 2 {
		t.Errorf("notices = %v", notices)
	}
}

func TestToolPredictDeficiency(t *testing.T) {
	ts := newTestServer(t, constModel(0))

	resp, out := do(t, ts, "POST", "/mcp", "", map[string]interface{}{
		"name": "predict_deficiency",
		"arguments": map[string]interface{}{
			"age": 25, "gender": "Female", "weight_kg": 55, "height_cm": 160,
			"foods": []string{"rice"},
		},
	})
	payload := toolText(t, resp, out)
	if payload["label"] != string(domain.LabelB12) {
		t.Errorf("label = %v", payload["label"])
	}
}

func TestToolSuggestFoods(t *testing.T) {
	ts := newTestServer(t, constModel(3))

	resp, out := do(t, ts, "POST", "/mcp", "", map[string]interface{}{
		"name": "suggest_foods",
		"arguments": map[string]interface{}{
			"label":     string(domain.LabelCalcium),
			"allergies": []string{"sesame", "milk", "ragi"},
		},
	})
	payload := toolText(t, resp, out)
	if payload["no_safe_option"] != true {
		t.Errorf("payload = %v", payload)
	}
}

func TestToolUnknown(t *testing.T) {
	ts := newTestServer(t, constModel(3))
	resp, _ := do(t, ts, "POST", "/mcp", "", map[string]interface{}{"name": "nope"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
