package triage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/opd/opd/internal/domain/appointment"
)

func TestClientRank(t *testing.T) {
	apptID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sort" {
			t.Errorf("expected /sort, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}

		var req struct {
			Patients []*appointment.TriageCase `json:"patients"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(req.Patients) != 1 || req.Patients[0].AppointmentID != apptID {
			t.Errorf("unexpected payload: %+v", req.Patients)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []appointment.TriageResult{
				{AppointmentID: apptID, PriorityRank: 2, SeverityScore: 7.5, Status: "approved"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	results, err := client.Rank(context.Background(), []*appointment.TriageCase{
		{AppointmentID: apptID, Age: 40, Gender: "male", VisitingStatus: appointment.VisitGeneral, MedicalCondition: "fever"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].PriorityRank != 2 || results[0].SeverityScore != 7.5 {
		t.Errorf("unexpected result: %+v", results[0])
	}
}

func TestClientRank_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "ranker down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	if _, err := client.Rank(context.Background(), nil); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestClientRank_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(srv.URL, 5*time.Second)
	if _, err := client.Rank(ctx, nil); err == nil {
		t.Error("expected error when context deadline passes")
	}
}
