// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

func apiBaseURL() string {
	if u := os.Getenv("AGENTP_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func newClient() *resty.Client {
	c := resty.New().
		SetBaseURL(apiBaseURL()).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")
	if token := os.Getenv("AGENTP_API_TOKEN"); token != "" {
		c.SetAuthToken(token)
	}
	return c
}

func createRun(task string) (string, error) {
	var out struct {
		RunID string `json:"run_id"`
	}
	resp, err := newClient().R().
		SetBody(map[string]string{"task": task}).
		SetResult(&out).
		Post("/api/runs")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusAccepted {
		return "", fmt.Errorf("POST /api/runs: %s", resp.String())
	}
	return out.RunID, nil
}

func getRun(runID string) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/runs/" + runID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/runs/%s: %s", runID, resp.String())
	}
	return out, nil
}

func listRuns() ([]string, error) {
	var out struct {
		RunIDs []string `json:"run_ids"`
	}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/runs")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/runs: %s", resp.String())
	}
	return out.RunIDs, nil
}

func listRunEvents(runID string) ([]map[string]interface{}, error) {
	var out struct {
		Events []map[string]interface{} `json:"events"`
	}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/runs/" + runID + "/events")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/runs/%s/events: %s", runID, resp.String())
	}
	return out.Events, nil
}

func cancelRun(runID string) error {
	resp, err := newClient().R().Post("/api/runs/" + runID + "/cancel")
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusAccepted {
		return fmt.Errorf("POST cancel: %s", resp.String())
	}
	return nil
}

func evalCode(code string) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetBody(map[string]string{"code": code}).
		SetResult(&out).
		Post("/api/sandbox/eval")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("POST /api/sandbox/eval: %s", resp.String())
	}
	return out, nil
}
