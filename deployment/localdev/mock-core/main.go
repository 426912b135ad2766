// mock-core stands in for the control plane, the vision gateway, and the
// notifier during local development, so the engine can run end to end
// against one process.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Control plane: every feed is active and shares one canned config.
	mux.HandleFunc("/api/v1/feeds/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 5 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		feedID, leaf := parts[3], parts[4]
		switch leaf {
		case "liveness":
			writeJSON(w, map[string]any{"active": true})
		case "monitoring-config":
			writeJSON(w, map[string]any{
				"source_url":        "http://localhost:8090/stream/" + feedID,
				"instruction":       "Alert on any person entering the fenced yard after hours.",
				"fps":               10,
				"frame_skip":        5,
				"trigger_threshold": 0.7,
				"segment_length":    10,
				"alert_channels": map[string]any{
					"contacts":     []map[string]string{{"name": "ops", "phone": "+15550100", "email": "ops@example.com"}},
					"enable_sms":   true,
					"enable_email": true,
				},
			})
		case "detections", "alerts":
			if !enforcePost(w, r) {
				return
			}
			writeJSON(w, map[string]any{"status": "stored"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	// Vision gateway: scores drift upward over time to exercise triggers.
	mux.HandleFunc("/api/v1/vision/classify-frame", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		score := 0.1 + rand.Float64()*0.85
		writeJSON(w, map[string]any{
			"description":   fmt.Sprintf("mock scene at %s", time.Now().Format(time.TimeOnly)),
			"anomaly_score": score,
			"tags":          []string{"person"},
		})
	})
	mux.HandleFunc("/api/v1/vision/analyze-segment", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		writeJSON(w, map[string]any{
			"narrative":             "A person entered the fenced yard and lingered near the gate.",
			"instruction_alignment": "matches: after-hours entry",
			"should_alert":          true,
			"severity":              "high",
			"recommended_actions":   []string{"Send SMS to contacts", "Log the event"},
			"reasoning":             "sustained presence across the segment",
		})
	})

	// Notifier: accepts everything and logs it.
	mux.HandleFunc("/api/v1/notify/dispatch", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		log.Printf("notify %s -> %s", payload["channel"], payload["to"])
		writeJSON(w, map[string]any{"status": "sent"})
	})

	logger := log.New(log.Writer(), "mock-core ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":8080",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :8080")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
