// Command loadtest drives the assistant's /api/ endpoint with a fixed pool of
// workers for a set duration and reports throughput, latency percentiles
// and how many answers came back as upstream errors or without links.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8000] [-concurrency 10] [-duration 30s] [-questions file]
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

var defaultQuestions = []string{
	"What is the deadline for project 1?",
	"Should I use Docker or Podman for the course?",
	"How is the GA score calculated?",
	"Which Python version is required?",
	"Can I use gpt-4o-mini instead of gpt-3.5-turbo?",
	"When is the end term exam?",
	"How do I submit the ROE assignment?",
	"What happens if I miss a graded assignment deadline?",
	"Is the bonus mark added to the final score?",
	"Where can I find the course references guidelines?",
}

type config struct {
	baseURL     string
	concurrency int
	duration    time.Duration
	timeout     time.Duration
	questions   []string
}

type payload struct {
	Answer string `json:"answer"`
	Links  []struct {
		URL  string `json:"url"`
		Text string `json:"text"`
	} `json:"links"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8000", "base URL of the assistant service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	timeout := flag.Duration("timeout", 60*time.Second, "per-request timeout")
	questionsPath := flag.String("questions", "", "file with one question per line")
	flag.Parse()

	questions := defaultQuestions
	if *questionsPath != "" {
		loaded, err := loadQuestions(*questionsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading questions: %v\n", err)
			os.Exit(1)
		}
		questions = loaded
	}

	cfg := config{
		baseURL:     strings.TrimRight(*baseURL, "/"),
		concurrency: *concurrency,
		duration:    *duration,
		timeout:     *timeout,
		questions:   questions,
	}

	fmt.Println("=== Course Assistant Load Test ===")
	fmt.Printf("Target:      %s/api/\n", cfg.baseURL)
	fmt.Printf("Concurrency: %d\n", cfg.concurrency)
	fmt.Printf("Duration:    %s\n", cfg.duration)
	fmt.Printf("Questions:   %d unique\n", len(cfg.questions))
	fmt.Println()

	stats := run(cfg)
	stats.Report(os.Stdout, cfg.duration)
}

func loadQuestions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" {
			out = append(out, q)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s contains no questions", path)
	}
	return out, nil
}

func run(cfg config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: cfg.timeout,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.concurrency * 2,
			MaxIdleConnsPerHost: cfg.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := workerID; ctx.Err() == nil; i++ {
				q := cfg.questions[i%len(cfg.questions)]
				start := time.Now()
				p, status, err := ask(ctx, client, cfg.baseURL, q)
				if ctx.Err() != nil {
					return
				}
				stats.Record(time.Since(start), status, p, err)
			}
		}(w)
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func ask(ctx context.Context, client *http.Client, baseURL, question string) (*payload, int, error) {
	body, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/", bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	var p payload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decoding answer: %w", err)
	}
	return &p, resp.StatusCode, nil
}
