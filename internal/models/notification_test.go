package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNotificationUnmarshalServerTimestamps(t *testing.T) {
	cases := map[string]time.Time{
		`"2024-03-01T10:20:30.123456Z"`:  time.Date(2024, 3, 1, 10, 20, 30, 123456000, time.UTC),
		`"2024-03-01T10:20:30Z"`:         time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC),
		`"2024-03-01T10:20:30.5+00:00Z"`: time.Date(2024, 3, 1, 10, 20, 30, 500000000, time.UTC),
		`"2024-03-01 10:20:30"`:          time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC),
		`"yesterday"`:                    {},
	}
	for raw, want := range cases {
		var n Notification
		if err := json.Unmarshal([]byte(`{"time":`+raw+`,"message":"m"}`), &n); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if !n.Time.Equal(want) {
			t.Fatalf("time for %s = %v, want %v", raw, n.Time, want)
		}
		if n.Message != "m" {
			t.Fatalf("message lost for %s", raw)
		}
	}
}

func TestUploadResponseShapes(t *testing.T) {
	var queued, indexed, rejected UploadResponse
	if err := json.Unmarshal([]byte(`{"message":"File uploaded, indexing started","job_id":"J1"}`), &queued); err != nil {
		t.Fatalf("decode queued: %v", err)
	}
	if err := json.Unmarshal([]byte(`{"message":"ok","doc_id":9}`), &indexed); err != nil {
		t.Fatalf("decode indexed: %v", err)
	}
	if err := json.Unmarshal([]byte(`{"error":"disk full"}`), &rejected); err != nil {
		t.Fatalf("decode rejected: %v", err)
	}
	if !queued.Queued() || queued.Indexed() {
		t.Fatalf("queued response misclassified: %+v", queued)
	}
	if !indexed.Indexed() || indexed.Queued() {
		t.Fatalf("indexed response misclassified: %+v", indexed)
	}
	if rejected.Queued() || rejected.Indexed() || rejected.Reason() != "disk full" {
		t.Fatalf("rejected response misclassified: %+v", rejected)
	}
	if (UploadResponse{}).Reason() != "Upload failed" {
		t.Fatalf("expected generic rejection reason")
	}
}

func TestDocIDAcceptsNumbersAndStrings(t *testing.T) {
	cases := map[string]DocID{
		`{"doc_id":9}`:    "9",
		`{"doc_id":"D9"}`: "D9",
		`{"doc_id":null}`: "",
		`{}`:              "",
	}
	for raw, want := range cases {
		var resp UploadResponse
		if err := json.Unmarshal([]byte(raw), &resp); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if resp.DocID != want {
			t.Fatalf("%s: doc id = %q, want %q", raw, resp.DocID, want)
		}
	}
	var resp UploadResponse
	if err := json.Unmarshal([]byte(`{"doc_id":true}`), &resp); err == nil {
		t.Fatalf("expected error for boolean doc_id")
	}
}
