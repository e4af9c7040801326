// Command render_diff renders a set of report cards against two template
// versions and reports any HTML differences. Run it before switching a
// board's default template to confirm the edit only changes what it was
// meant to change.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type cardTarget struct {
	ReportCardID string `json:"reportCardId"`
	Label        string `json:"label"`
}

type cardsFile struct {
	Cards []cardTarget `json:"cards"`
}

type renderEnvelope struct {
	Data struct {
		Content  string   `json:"content"`
		Warnings []string `json:"warnings"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type renderResult struct {
	Target       cardTarget
	Match        bool
	Err          error
	WarningsA    []string
	WarningsB    []string
	FirstDiffPos int
}

func main() {
	var (
		base      string
		templateA string
		templateB string
		cardsPath string
		token     string
		timeout   time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL")
	flag.StringVar(&templateA, "template-a", "", "Current template ID")
	flag.StringVar(&templateB, "template-b", "", "Candidate template ID")
	flag.StringVar(&cardsPath, "cards", filepath.Join("scripts", "render_diff", "cards.json"), "Path to JSON card list")
	flag.StringVar(&token, "token", os.Getenv("RENDER_DIFF_TOKEN"), "Bearer token")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	if templateA == "" || templateB == "" {
		log.Fatal("both -template-a and -template-b are required")
	}

	cards, err := loadCards(cardsPath)
	if err != nil {
		log.Fatalf("failed to load card list: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	diffs := 0
	fmt.Printf("Render diff: %s vs %s (%d cards)\n", templateA, templateB, len(cards))

	for _, target := range cards {
		res := compareCard(client, base, token, templateA, templateB, target)
		printResult(res)
		if res.Err != nil || !res.Match {
			diffs++
		}
	}

	fmt.Printf("Cards differing: %d of %d\n", diffs, len(cards))
	if diffs > 0 {
		os.Exit(1)
	}
}

func loadCards(path string) ([]cardTarget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file cardsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Cards) == 0 {
		return nil, fmt.Errorf("no cards listed in %s", path)
	}
	return file.Cards, nil
}

func compareCard(client *http.Client, base, token, templateA, templateB string, target cardTarget) renderResult {
	res := renderResult{Target: target, FirstDiffPos: -1}

	a, err := render(client, base, token, target.ReportCardID, templateA)
	if err != nil {
		res.Err = fmt.Errorf("template %s: %w", templateA, err)
		return res
	}
	b, err := render(client, base, token, target.ReportCardID, templateB)
	if err != nil {
		res.Err = fmt.Errorf("template %s: %w", templateB, err)
		return res
	}

	res.WarningsA = a.Data.Warnings
	res.WarningsB = b.Data.Warnings
	res.Match = a.Data.Content == b.Data.Content
	if !res.Match {
		res.FirstDiffPos = firstDiff(a.Data.Content, b.Data.Content)
	}
	return res
}

func render(client *http.Client, base, token, reportCardID, templateID string) (*renderEnvelope, error) {
	endpoint := fmt.Sprintf("%s/report-cards/%s/render?templateId=%s",
		strings.TrimRight(base, "/"), url.PathEscape(reportCardID), url.QueryEscape(templateID))

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var envelope renderEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, err)
	}
	if envelope.Error != nil {
		return nil, fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return &envelope, nil
}

func firstDiff(a, b string) int {
	limit := len(a)
	if len(b) < limit {
		limit = len(b)
	}
	for i := 0; i < limit; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return limit
}

func printResult(res renderResult) {
	status := "MATCH"
	if res.Err != nil {
		status = "ERROR"
	} else if !res.Match {
		status = "DIFF"
	}
	label := res.Target.Label
	if label == "" {
		label = res.Target.ReportCardID
	}
	fmt.Printf("[%s] %s\n", status, label)
	if res.Err != nil {
		fmt.Printf("  Error: %v\n", res.Err)
		return
	}
	if !res.Match {
		fmt.Printf("  First difference at byte %d\n", res.FirstDiffPos)
	}
	if len(res.WarningsA) > 0 || len(res.WarningsB) > 0 {
		fmt.Printf("  Warnings: a=%v b=%v\n", res.WarningsA, res.WarningsB)
	}
}
