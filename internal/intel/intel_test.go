package intel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillm/opentrade-bot/internal/domain"
)

func TestFetchFearGreed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"value":"25","value_classification":"Extreme Fear","timestamp":"1756700000"}]}`))
	}))
	defer srv.Close()

	s := NewService(nil, nil, time.Minute)
	s.fearGreedURL = srv.URL

	got, err := s.FetchFearGreed(context.Background())
	if err != nil {
		t.Fatalf("FetchFearGreed() error = %v", err)
	}
	if got.Value != 25 {
		t.Errorf("value = %d, want 25", got.Value)
	}
	if got.Classification != "Extreme Fear" {
		t.Errorf("classification = %q", got.Classification)
	}
	if got.Timestamp != 1756700000000 {
		t.Errorf("timestamp = %d, want millis", got.Timestamp)
	}
}

func TestFetchFearGreed_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "empty data",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"data":[]}`))
			},
		},
		{
			name: "non-numeric value",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"data":[{"value":"??","value_classification":"Fear","timestamp":"1"}]}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			s := NewService(nil, nil, time.Minute)
			s.fearGreedURL = srv.URL

			if _, err := s.FetchFearGreed(context.Background()); err == nil {
				t.Error("want error")
			}
		})
	}
}

func TestRiskLevel_DefaultsToMedium(t *testing.T) {
	s := NewService(nil, nil, time.Minute)

	if got := s.RiskLevel(); got != domain.RiskMedium {
		t.Errorf("risk level = %q, want medium before first report", got)
	}
	if s.Report() != nil {
		t.Error("report must be nil before first refresh")
	}

	s.SetReport(&domain.StrategyReport{RiskLevel: domain.RiskHigh})
	if got := s.RiskLevel(); got != domain.RiskHigh {
		t.Errorf("risk level = %q, want high after SetReport", got)
	}
}
