package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Deploy smoke check: drives a full activity lifecycle against a running
// instance (submit, approve, enroll, cancel) using two real accounts and
// fails loudly when any step breaks.

type step struct {
	Name     string
	Status   int
	Duration time.Duration
	Error    error
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type client struct {
	base string
	http *http.Client
}

func main() {
	var (
		base        string
		adminUser   string
		adminPass   string
		studentUser string
		studentPass string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&adminUser, "admin-user", "admin", "admin username")
	flag.StringVar(&adminPass, "admin-pass", "admin", "admin password")
	flag.StringVar(&studentUser, "student-user", "student", "student username")
	flag.StringVar(&studentPass, "student-pass", "student", "student password")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	c := &client{base: strings.TrimRight(base, "/"), http: &http.Client{Timeout: timeout}}

	var steps []step
	run := func(name string, fn func() (int, error)) bool {
		start := time.Now()
		status, err := fn()
		steps = append(steps, step{Name: name, Status: status, Duration: time.Since(start), Error: err})
		return err == nil
	}

	var adminToken, studentToken, activityID, enrollmentID string

	ok := run("admin login", func() (int, error) {
		return c.login(adminUser, adminPass, &adminToken)
	})
	ok = ok && run("student login", func() (int, error) {
		return c.login(studentUser, studentPass, &studentToken)
	})
	ok = ok && run("submit activity", func() (int, error) {
		start := time.Now().Add(24 * time.Hour).UTC()
		body := map[string]interface{}{
			"title":      fmt.Sprintf("smoke-%d", time.Now().Unix()),
			"category":   "smoke",
			"location":   "nowhere",
			"start_time": start.Format(time.RFC3339),
			"end_time":   start.Add(time.Hour).Format(time.RFC3339),
			"capacity":   1,
		}
		return c.call(http.MethodPost, "/api/v1/activities", adminToken, body, func(data json.RawMessage) error {
			return extractID(data, &activityID)
		})
	})
	ok = ok && run("approve activity", func() (int, error) {
		return c.call(http.MethodPost, "/api/v1/activities/"+activityID+"/approve", adminToken, nil, nil)
	})
	ok = ok && run("enroll student", func() (int, error) {
		body := map[string]string{"activity_id": activityID}
		return c.call(http.MethodPost, "/api/v1/enrollments", studentToken, body, func(data json.RawMessage) error {
			var result struct {
				Enrollment struct {
					ID string `json:"id"`
				} `json:"enrollment"`
			}
			if err := json.Unmarshal(data, &result); err != nil {
				return err
			}
			if result.Enrollment.ID == "" {
				return fmt.Errorf("no enrollment id in response")
			}
			enrollmentID = result.Enrollment.ID
			return nil
		})
	})
	ok = ok && run("cancel enrollment", func() (int, error) {
		return c.call(http.MethodDelete, "/api/v1/enrollments/"+enrollmentID, studentToken, nil, nil)
	})
	ok = ok && run("cancel activity", func() (int, error) {
		return c.call(http.MethodPost, "/api/v1/activities/"+activityID+"/cancel", adminToken, nil, nil)
	})

	printReport(steps)
	if !ok {
		os.Exit(1)
	}
}

func (c *client) login(username, password string, token *string) (int, error) {
	body := map[string]string{"username": username, "password": password}
	return c.call(http.MethodPost, "/api/v1/auth/login", "", body, func(data json.RawMessage) error {
		var result struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.Unmarshal(data, &result); err != nil {
			return err
		}
		if result.AccessToken == "" {
			return fmt.Errorf("no token in response")
		}
		*token = result.AccessToken
		return nil
	})
}

func (c *client) call(method, path, token string, body interface{}, onData func(json.RawMessage) error) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return resp.StatusCode, fmt.Errorf("invalid response body: %w", err)
	}
	if env.Error != nil {
		return resp.StatusCode, fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if onData != nil {
		if err := onData(env.Data); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func extractID(data json.RawMessage, dest *string) error {
	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return err
	}
	if result.ID == "" {
		return fmt.Errorf("no id in response")
	}
	*dest = result.ID
	return nil
}

func printReport(steps []step) {
	fmt.Println("Smoke Check Report")
	fmt.Println("==================")
	for _, s := range steps {
		status := "OK"
		if s.Error != nil {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s\n", status, s.Name)
		fmt.Printf("  Status: %d (%s)\n", s.Status, s.Duration)
		if s.Error != nil {
			fmt.Printf("  Error: %v\n", s.Error)
		}
	}
}
