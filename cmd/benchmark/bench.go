package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

const (
	mockPort = 9091
	appPort  = 8081
)

var (
	streamChunk1 = []byte("data: {\"choices\":[{\"delta\":{\"content\":\"Bench\"}}]}\n\n")
	streamChunk2 = []byte("data: {\"choices\":[{\"delta\":{\"content\":\"mark\"}}]}\n\n")
	streamChunk3 = []byte("data: {\"choices\":[{\"delta\":{\"content\":\" response\"}}]}\n\n")
	streamDone   = []byte("data: [DONE]\n\n")
	unaryResp    = []byte(`{"id":"bench-123","choices":[{"message":{"content":"Hello"}}],"usage":{"prompt_tokens":5,"completion_tokens":3,"total_tokens":8}}`)
)

func main() {
	duration := flag.Duration("duration", 10*time.Second, "Duration of the test")
	rate := flag.Int("rate", 50, "Requests per second")
	stream := flag.Bool("stream", false, "Use streaming requests")
	chaos := flag.Bool("chaos", false, "Simulate random client disconnections")
	flag.Parse()

	// Mock Hugging Face router endpoint (OpenAI-compatible).
	go startMockServer()

	fmt.Println("Building application...")
	buildCmd := exec.Command("go", "build", "-o", "bin/server", "./cmd/server")
	buildCmd.Stdout = os.Stdout
	buildCmd.Stderr = os.Stderr
	if err := buildCmd.Run(); err != nil {
		log.Fatalf("Failed to build app: %v", err)
	}

	fmt.Println("Starting application...")
	cmd := exec.Command("./bin/server")

	cmd.Env = append(os.Environ(),
		fmt.Sprintf("SERVER_PORT=%d", appPort),
		fmt.Sprintf("PROVIDERS_HF_BASE_URL=http://localhost:%d/v1", mockPort),
		"PROVIDERS_HF_TOKEN=bench-token",
		"RATE_LIMIT_REQUESTS_PER_SECOND=100000",
		"RATE_LIMIT_BURST=100000",
		"ANALYTICS_ENABLED=false",
		"LOG_LEVEL=error",
	)

	logFile, _ := os.Create("bench_server.log")
	defer logFile.Close()
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}
	defer func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
	}()

	waitForApp(fmt.Sprintf("http://localhost:%d/api/health", appPort))

	done := make(chan struct{})

	mode := "Unary"
	endpoint := fmt.Sprintf("http://localhost:%d/api/chat", appPort)
	if *stream {
		mode = "Streaming"
		endpoint = fmt.Sprintf("http://localhost:%d/api/chat/stream", appPort)
	}
	fmt.Printf("Running %s benchmark: %s duration, %d req/s\n", mode, *duration, *rate)

	// mixtral resolves to the mocked Hugging Face provider.
	body := `{"model": "mixtral", "messages": [{"role": "user", "content": "Hello"}]}`

	targeter := func(t *vegeta.Target) error {
		t.Method = "POST"
		t.URL = endpoint
		t.Body = []byte(body)
		t.Header = http.Header{
			"Content-Type":      []string{"application/json"},
			"X-Benchmark-Start": []string{strconv.FormatInt(time.Now().UnixNano(), 10)},
		}
		return nil
	}

	if *chaos {
		fmt.Println("CHAOS MODE ENABLED: Starting Chaos Monkey sidecar...")
		chaosConcurrency := *rate / 10
		if chaosConcurrency < 5 {
			chaosConcurrency = 5
		}
		if chaosConcurrency > 50 {
			chaosConcurrency = 50
		}
		streamEndpoint := fmt.Sprintf("http://localhost:%d/api/chat/stream", appPort)
		go startChaosMonkey(streamEndpoint, chaosConcurrency, done)
	}

	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	var metrics vegeta.Metrics

	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: *rate, Per: time.Second}, *duration, "Benchmark") {
		metrics.Add(res)
	}
	metrics.Close()

	close(done)

	fmt.Println("--------------------------------------------------")
	fmt.Println("99th percentile: ", metrics.Latencies.P99)
	fmt.Println("Mean:            ", metrics.Latencies.Mean)
	fmt.Println("Max:             ", metrics.Latencies.Max)
	fmt.Printf("Success:         %.2f%%\n", metrics.Success*100)
	fmt.Printf("Throughput:      %.2f req/s\n", metrics.Throughput)
	fmt.Println("--------------------------------------------------")

	if len(metrics.Errors) > 0 {
		fmt.Println("Error Set (first 5 unique):")

		uniqueErrors := make(map[string]bool)
		count := 0
		for _, msg := range metrics.Errors {
			if !uniqueErrors[msg] && count < 5 {
				fmt.Println(msg)

				uniqueErrors[msg] = true
				count++
			}
		}
	}
}

func startChaosMonkey(url string, concurrency int, done chan struct{}) {
	fmt.Printf("Starting Chaos Monkey with %d concurrent disrupters (random disconnects 1-200ms)\n", concurrency)
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			client := &http.Client{
				Transport: &http.Transport{
					MaxIdleConns:        100,
					MaxIdleConnsPerHost: 100,
					DisableKeepAlives:   false,
				},
			}

			payload := `{"model": "mixtral", "messages": [{"role": "user", "content": "Chaos Request"}]}`

			for {
				select {
				case <-done:
					return
				default:
					// Disconnect somewhere between 1ms and 200ms in.
					timeout := time.Duration(rand.Intn(200)+1) * time.Millisecond

					ctx, cancel := context.WithTimeout(context.Background(), timeout)
					req, _ := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(payload))
					req.Header.Set("Content-Type", "application/json")

					resp, err := client.Do(req)
					if err == nil {
						resp.Body.Close()
					}
					cancel()

					time.Sleep(time.Duration(rand.Intn(50)) * time.Millisecond)
				}
			}
		}()
	}
}

func startMockServer() {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		startStr := r.Header.Get("X-Benchmark-Start")
		if startStr != "" {
			start, _ := strconv.ParseInt(startStr, 10, 64)
			latency := time.Now().UnixNano() - start
			// Sample 1% of requests to avoid console spam
			if rand.Intn(100) == 0 {
				fmt.Printf("DEBUG: Proxy Overhead: %v\n", time.Duration(latency))
			}
		}

		var req map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&req)

		if val, ok := req["stream"].(bool); ok && val {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher, _ := w.(http.Flusher)

			chunks := [][]byte{streamChunk1, streamChunk2, streamChunk3}
			for _, chunk := range chunks {
				time.Sleep(50 * time.Millisecond)
				w.Write(chunk)
				flusher.Flush()
			}
			w.Write(streamDone)
			flusher.Flush()
			return
		}

		time.Sleep(10 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write(unaryResp)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	_ = http.ListenAndServe(fmt.Sprintf(":%d", mockPort), mux)
}

func waitForApp(url string) {
	for i := 0; i < 20; i++ {
		resp, err := http.Get(url)
		if err == nil && resp.StatusCode == 200 {
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	log.Fatal("App timed out")
}
