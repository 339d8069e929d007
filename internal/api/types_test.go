package api

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestParseTimeLayouts(t *testing.T) {
	rfc := "2025-12-13T10:11:12Z"
	if got := ParseTime(rfc); !got.Equal(time.Date(2025, 12, 13, 10, 11, 12, 0, time.UTC)) {
		t.Fatalf("ParseTime(%q) = %v", rfc, got)
	}
	if got := ParseTime("2025-12-13 10:11:12"); got.IsZero() {
		t.Fatalf("ParseTime backend layout returned zero time")
	}
	if got := ParseTime("  "); !got.IsZero() {
		t.Fatalf("ParseTime blank = %v, want zero", got)
	}
	if got := ParseTime("yesterday"); !got.IsZero() {
		t.Fatalf("ParseTime garbage = %v, want zero", got)
	}
}

func TestEmailRow_TopTriggerWords(t *testing.T) {
	row := EmailRow{
		TopWordsNB:     map[string]float64{"urgent": 0.9, "verify": 0.8},
		TopWordsRF:     map[string]float64{"urgent": 0.5, "account": 0.4},
		TopWordsXGB:    map[string]float64{"verify": 0.3, "urgent": 0.2},
		TopWordsLogreg: map[string]float64{"password": 0.1},
	}
	got := row.TopTriggerWords(3)
	want := []string{"urgent", "verify", "account"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("TopTriggerWords = %v, want %v", got, want)
	}
	if got := (EmailRow{}).TopTriggerWords(5); len(got) != 0 {
		t.Fatalf("TopTriggerWords on empty row = %v, want none", got)
	}
}

func TestFlexString_AcceptsStringsAndNumbers(t *testing.T) {
	var row PacketRow
	if err := json.Unmarshal([]byte(`{"protocol":17}`), &row); err != nil {
		t.Fatalf("Unmarshal numeric protocol: %v", err)
	}
	if row.Protocol != "17" {
		t.Fatalf("Protocol = %q, want 17", row.Protocol)
	}
	if err := json.Unmarshal([]byte(`{"protocol":"UDP"}`), &row); err != nil {
		t.Fatalf("Unmarshal string protocol: %v", err)
	}
	if row.Protocol != "UDP" {
		t.Fatalf("Protocol = %q, want UDP", row.Protocol)
	}
	if err := json.Unmarshal([]byte(`{"protocol":null}`), &row); err != nil || row.Protocol != "" {
		t.Fatalf("Unmarshal null protocol = %q (%v), want empty", row.Protocol, err)
	}
	if err := json.Unmarshal([]byte(`{"protocol":true}`), &row); err == nil {
		t.Fatalf("Unmarshal bool protocol returned nil error")
	}
}

func TestDecodePage_MissingFieldsDefault(t *testing.T) {
	page, err := decodePage[EmailRow]([]byte(`{"emails":null}`), "emails")
	if err != nil {
		t.Fatalf("decodePage returned error: %v", err)
	}
	if page.Total != 0 || page.Page != 0 || page.PageSize != 0 || page.Items != nil {
		t.Fatalf("decodePage = %+v, want zero value", page)
	}
}
