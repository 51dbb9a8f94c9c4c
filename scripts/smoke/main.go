// Command smoke probes a running instance and verifies the deployment is
// serviceable: liveness, readiness, bootstrap idempotence and an admin
// login round trip. Exit code 1 means at least one critical probe failed.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

type probe struct {
	Name     string
	Method   string
	Path     string
	Body     []byte
	Expect   int
	Critical bool
}

type result struct {
	Probe    probe
	Status   int
	Duration time.Duration
	Err      error
}

func main() {
	var (
		base     string
		login    string
		password string
		timeout  time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&login, "login", "admin", "Admin login for the auth probe")
	flag.StringVar(&password, "password", "123456", "Admin password for the auth probe")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	loginPayload, _ := json.Marshal(map[string]string{"login": login, "password": password})

	probes := []probe{
		{Name: "liveness", Method: http.MethodGet, Path: "/health", Expect: http.StatusOK, Critical: true},
		{Name: "readiness", Method: http.MethodGet, Path: "/ready", Expect: http.StatusOK, Critical: true},
		{Name: "bootstrap (first)", Method: http.MethodPost, Path: "/init", Expect: http.StatusOK, Critical: true},
		{Name: "bootstrap (repeat)", Method: http.MethodPost, Path: "/init", Expect: http.StatusOK, Critical: true},
		{Name: "admin login", Method: http.MethodPost, Path: "/api/v1/auth/login", Body: loginPayload, Expect: http.StatusOK, Critical: false},
		{Name: "metrics", Method: http.MethodGet, Path: "/metrics", Expect: http.StatusOK, Critical: false},
	}

	client := &http.Client{Timeout: timeout}
	failures := 0

	for _, p := range probes {
		res := run(client, base, p)
		status := "ok"
		if res.Err != nil {
			status = fmt.Sprintf("error: %v", res.Err)
		} else if res.Status != p.Expect {
			status = fmt.Sprintf("got %d, want %d", res.Status, p.Expect)
		}
		if status != "ok" && p.Critical {
			failures++
		}
		fmt.Printf("%-20s %-6s %-28s %8s  %s\n", p.Name, p.Method, p.Path, res.Duration.Round(time.Millisecond), status)
	}

	if failures > 0 {
		fmt.Printf("critical failures: %d\n", failures)
		os.Exit(1)
	}
}

func run(client *http.Client, base string, p probe) result {
	var body io.Reader
	if p.Body != nil {
		body = bytes.NewReader(p.Body)
	}

	req, err := http.NewRequest(p.Method, base+p.Path, body)
	if err != nil {
		return result{Probe: p, Err: err}
	}
	if p.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		return result{Probe: p, Duration: duration, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return result{Probe: p, Status: resp.StatusCode, Duration: duration}
}
