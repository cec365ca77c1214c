package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/tokenizer"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	// RPS caps the total request rate; zero runs unthrottled.
	RPS       float64
	MaxErrors int
	Queries   []string
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	cacheHits     atomic.Int64
	zeroResults   atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

// searchReply holds the response fields the report uses.
type searchReply struct {
	TotalHits int    `json:"total_hits"`
	Cache     string `json:"cache"`
}

func (s *Stats) RecordRequest(duration time.Duration, statusCode int, reply *searchReply, err error) {
	s.totalRequests.Add(1)

	if err != nil {
		s.errorCount.Add(1)
		return
	}

	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}
	if reply != nil {
		if reply.Cache == "local" || reply.Cache == "redis" {
			s.cacheHits.Add(1)
		}
		if reply.TotalHits == 0 {
			s.zeroResults.Add(1)
		}
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	rps := flag.Float64("rps", 0, "total requests per second, 0 for unthrottled")
	maxErrors := flag.Int("max-errors", 0, "max_errors sent with every query")
	docs := flag.String("docs", "static/data/short_diagnoses.txt", "document file to draw query words from")
	numQueries := flag.Int("queries", 200, "number of distinct queries to generate")
	flag.Parse()

	lines, err := source.NewFileSource(*docs).ReadDocuments(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading documents: %v\n", err)
		os.Exit(1)
	}
	queries := buildQueries(lines, *numQueries, rand.New(rand.NewPCG(1, 2)))
	if len(queries) == 0 {
		fmt.Fprintln(os.Stderr, "no query words found in", *docs)
		os.Exit(1)
	}

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		RPS:         *rps,
		MaxErrors:   *maxErrors,
		Queries:     queries,
	}

	fmt.Println("=== Fuzzy Search Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Max errors:  %d\n", cfg.MaxErrors)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()
	stats := runLoadTest(ctx, cfg, newClient(cfg.Concurrency))
	fmt.Println()
	if printReport(os.Stdout, stats, cfg.Duration) == 0 {
		os.Exit(1)
	}
}

// buildQueries draws a mix of one-word queries, two-word free-text queries
// and one-word queries with a single dropped character from the vocabulary
// of lines.
func buildQueries(lines []string, n int, rng *rand.Rand) []string {
	seen := make(map[string]struct{})
	var words []string
	for _, line := range lines {
		for _, term := range tokenizer.Tokenize(line) {
			if _, ok := seen[term]; ok || len(term) < 3 {
				continue
			}
			seen[term] = struct{}{}
			words = append(words, term)
		}
	}
	if len(words) == 0 {
		return nil
	}

	queries := make([]string, 0, n)
	for i := 0; i < n; i++ {
		word := words[rng.IntN(len(words))]
		switch i % 3 {
		case 0:
			queries = append(queries, word)
		case 1:
			queries = append(queries, word+" "+words[rng.IntN(len(words))])
		default:
			cut := rng.IntN(len(word))
			queries = append(queries, word[:cut]+word[cut+1:])
		}
	}
	return queries
}

func newClient(concurrency int) *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// runLoadTest issues searches from cfg.Concurrency workers until ctx is done.
func runLoadTest(ctx context.Context, cfg Config, client *http.Client) *Stats {
	stats := NewStats()
	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), max(1, cfg.Concurrency))
	}

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		queryIdx := w
		g.Go(func() error {
			for ctx.Err() == nil {
				if limiter != nil && limiter.Wait(ctx) != nil {
					return nil
				}
				query := cfg.Queries[queryIdx%len(cfg.Queries)]
				queryIdx++

				start := time.Now()
				code, reply, err := search(ctx, client, cfg, query)
				if ctx.Err() != nil {
					return nil
				}
				stats.RecordRequest(time.Since(start), code, reply, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return stats
}

func search(ctx context.Context, client *http.Client, cfg Config, query string) (int, *searchReply, error) {
	params := url.Values{"q": {query}}
	if cfg.MaxErrors > 0 {
		params.Set("max_errors", strconv.Itoa(cfg.MaxErrors))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/api/v1/search?"+params.Encode(), nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil, nil
	}
	var reply searchReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, &reply, nil
}

// printReport writes the summary and returns the number of completed requests.
func printReport(w io.Writer, stats *Stats, duration time.Duration) int64 {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", success)
	fmt.Fprintf(w, "Errors:          %d\n", errors)
	fmt.Fprintf(w, "Cache Hits:      %d\n", stats.cacheHits.Load())
	fmt.Fprintf(w, "Zero Results:    %d\n", stats.zeroResults.Load())

	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(errors)/float64(total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", avg)
		fmt.Fprintf(w, "P50:    %s\n", percentile(latencies, 50))
		fmt.Fprintf(w, "P90:    %s\n", percentile(latencies, 90))
		fmt.Fprintf(w, "P99:    %s\n", percentile(latencies, 99))
		fmt.Fprintf(w, "Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "WARNING: No requests completed. Is the service running?")
	}
	return total
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
