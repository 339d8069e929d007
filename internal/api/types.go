package api

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const backendTimestampLayout = "2006-01-02 15:04:05"

// EmailStats mirrors the payload of /api/email-stats and EMAIL_DASHBOARD_STATS frames.
// Every field is optional on the wire.
type EmailStats struct {
	TotalEmails       int             `json:"total_emails"`
	PhishingEmails    int             `json:"phishing_emails"`
	LastPhishingTime  string          `json:"last_phishing_time"`
	LastPhishingEmail *PhishingDetail `json:"last_phishing_email"`
}

// PhishingDetail describes the most recent email classified as phishing.
type PhishingDetail struct {
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	MessageID  string `json:"message_id"`
	Sender     string `json:"sender"`
	Recipient  string `json:"recipient"`
	ReturnPath string `json:"return_path"`
	DKIM       string `json:"dkim"`
	SPF        string `json:"spf"`
	Timestamp  string `json:"timestamp"`
}

// NetworkStats mirrors the payload of /api/network-stats and NETWORK_DASHBOARD_STATS frames.
type NetworkStats struct {
	TotalFlows        int         `json:"total_flows"`
	MaliciousFlows    int         `json:"malicious_flows"`
	LastMaliciousTime string      `json:"last_malicious_time"`
	LastMaliciousFlow *FlowDetail `json:"last_malicious_flow"`
}

// FlowDetail describes the most recent flow classified as malicious.
type FlowDetail struct {
	FlowID    string     `json:"flow_id"`
	SrcIP     string     `json:"src_ip"`
	DstIP     string     `json:"dst_ip"`
	Protocol  FlexString `json:"protocol"`
	RiskScore float64    `json:"risk_score"`
	Timestamp string     `json:"timestamp"`
}

// EmailRow is a single row of the paginated email table.
type EmailRow struct {
	ID                int64              `json:"id"`
	MessageID         string             `json:"message_id"`
	Subject           string             `json:"subject"`
	Body              string             `json:"body"`
	Sender            string             `json:"sender"`
	Prediction        int                `json:"prediction"`
	Date              string             `json:"date"`
	WinnerProbability float64            `json:"winner_probability"`
	HeaderValid       bool               `json:"header_valid"`
	RiskScore         float64            `json:"risk_score"`
	TopWordsNB        map[string]float64 `json:"top_5_words_from_nb"`
	TopWordsRF        map[string]float64 `json:"top_5_words_from_rf"`
	TopWordsXGB       map[string]float64 `json:"top_5_words_from_xgb"`
	TopWordsKNN       map[string]float64 `json:"top_5_words_from_knn"`
	TopWordsLogreg    map[string]float64 `json:"top_5_words_from_logreg"`
}

// IsPhishing reports whether the classifier flagged the email.
func (e EmailRow) IsPhishing() bool {
	return e.Prediction == 1
}

// ParsedDate returns the parsed Date timestamp.
func (e EmailRow) ParsedDate() time.Time {
	return ParseTime(e.Date)
}

// TopTriggerWords merges the per-model top word lists and returns the words
// named by the most models, most frequent first.
func (e EmailRow) TopTriggerWords(limit int) []string {
	counts := make(map[string]int)
	for _, words := range []map[string]float64{e.TopWordsNB, e.TopWordsRF, e.TopWordsXGB, e.TopWordsKNN, e.TopWordsLogreg} {
		for word := range words {
			counts[word]++
		}
	}
	ranked := make([]string, 0, len(counts))
	for word := range counts {
		ranked = append(ranked, word)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// PacketRow is a single captured flow of the paginated network table.
type PacketRow struct {
	FlowID           string     `json:"flow_id"`
	SrcIP            string     `json:"src_ip"`
	DstIP            string     `json:"dst_ip"`
	SrcPort          int        `json:"src_port"`
	DstPort          int        `json:"dst_port"`
	Protocol         FlexString `json:"protocol"`
	FlowDuration     float64    `json:"flow_duration"`
	TotalFwdPackets  int        `json:"total_fwd_packets"`
	TotalBwdPackets  int        `json:"total_backward_packets"`
	BytesPerSecond   float64    `json:"flow_bytes_per_sec"`
	PacketsPerSecond float64    `json:"flow_packets_per_sec"`
	Prediction       int        `json:"prediction"`
	RiskScore        float64    `json:"risk_score"`
	Timestamp        string     `json:"timestamp"`
}

// IsMalicious reports whether the classifier flagged the flow.
func (p PacketRow) IsMalicious() bool {
	return p.Prediction == 1
}

// ParsedTimestamp returns the parsed flow timestamp.
func (p PacketRow) ParsedTimestamp() time.Time {
	return ParseTime(p.Timestamp)
}

// FlexString accepts either a JSON string or number. The backend reports
// protocols as IANA numbers in some tables and names in others.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
		return fmt.Errorf("flex string: unsupported value %s", trimmed)
	}
	*f = FlexString(trimmed)
	return nil
}

// String returns the underlying value.
func (f FlexString) String() string {
	return string(f)
}

// PageResponse is the decoded form of a paginated table response.
type PageResponse[T any] struct {
	Items    []T
	Total    int
	Page     int
	PageSize int
}

// decodePage decodes {page, pageSize|page_size, total, <itemsKey>: [...]}.
func decodePage[T any](data []byte, itemsKey string) (PageResponse[T], error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return PageResponse[T]{}, err
	}
	var out PageResponse[T]
	if err := decodeOptional(raw, "total", &out.Total); err != nil {
		return PageResponse[T]{}, err
	}
	if err := decodeOptional(raw, "page", &out.Page); err != nil {
		return PageResponse[T]{}, err
	}
	if err := decodeOptional(raw, "pageSize", &out.PageSize); err != nil {
		return PageResponse[T]{}, err
	}
	if out.PageSize == 0 {
		if err := decodeOptional(raw, "page_size", &out.PageSize); err != nil {
			return PageResponse[T]{}, err
		}
	}
	if err := decodeOptional(raw, itemsKey, &out.Items); err != nil {
		return PageResponse[T]{}, err
	}
	return out, nil
}

func decodeOptional(raw map[string]json.RawMessage, key string, dest any) error {
	value, ok := raw[key]
	if !ok || string(value) == "null" {
		return nil
	}
	if err := json.Unmarshal(value, dest); err != nil {
		return fmt.Errorf("field %s: %w", key, err)
	}
	return nil
}

// ParseTime parses backend timestamps. The zero time the backend emits when a
// value is absent ("0001-01-01T00:00:00Z") is reported as the zero time.
func ParseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(backendTimestampLayout, value, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
