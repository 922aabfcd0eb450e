package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopslot/booking-service/internal/config"
	"github.com/shopslot/booking-service/internal/db"
)

// Load generator for the reserve/confirm/release booking flow. Points
// many workers at overlapping provider slots to measure how often the
// hold manager turns contention into slot_already_held conflicts.

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	ReserveRatio  float64
	ConfirmRatio  float64
	ReleaseRatio  float64
	ProviderLimit int
	ClientLimit   int
	PostgresDSN   string
}

type provider struct {
	ID     uuid.UUID
	ShopID uuid.UUID
}

type service struct {
	ID              uuid.UUID
	ProviderID      uuid.UUID
	DurationMinutes int
}

type DataPool struct {
	Providers []provider
	Services  map[uuid.UUID]service // by provider
	Clients   []uuid.UUID

	mu           sync.RWMutex
	reservations []uuid.UUID
}

func (dp *DataPool) AddReservation(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.reservations = append(dp.reservations, id)
}

func (dp *DataPool) TakeRandomReservation(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.reservations) == 0 {
		return uuid.Nil, false
	}
	idx := rng.Intn(len(dp.reservations))
	id := dp.reservations[idx]
	dp.reservations = append(dp.reservations[:idx], dp.reservations[idx+1:]...)
	return id, true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	ReserveOp OperationMetrics
	ConfirmOp OperationMetrics
	ReleaseOp OperationMetrics
	ListOp    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d reserve=%.2f confirm=%.2f release=%.2f",
		cfg.Duration, cfg.Workers, cfg.ReserveRatio, cfg.ConfirmRatio, cfg.ReleaseRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d providers, %d clients", len(dataPool.Providers), len(dataPool.Clients))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		ReserveRatio:  getFloat("SIM_RESERVE_RATIO", 0.5),
		ConfirmRatio:  getFloat("SIM_CONFIRM_RATIO", 0.25),
		ReleaseRatio:  getFloat("SIM_RELEASE_RATIO", 0.15),
		ProviderLimit: getInt("SIM_PROVIDER_LIMIT", 50),
		ClientLimit:   getInt("SIM_CLIENT_LIMIT", 2000),
		PostgresDSN:   baseCfg.PostgresDSN,
	}

	// Normalize ratios; the remainder goes to list reads
	total := cfg.ReserveRatio + cfg.ConfirmRatio + cfg.ReleaseRatio
	if total > 1 {
		cfg.ReserveRatio /= total
		cfg.ConfirmRatio /= total
		cfg.ReleaseRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{Services: make(map[uuid.UUID]service)}

	rows, err := pool.Query(ctx, `
		SELECT id, shop_id FROM providers LIMIT $1
	`, cfg.ProviderLimit)
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p provider
		if err := rows.Scan(&p.ID, &p.ShopID); err != nil {
			return nil, err
		}
		dataPool.Providers = append(dataPool.Providers, p)
	}

	svcRows, err := pool.Query(ctx, `
		SELECT id, provider_id, duration_minutes FROM services
	`)
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	defer svcRows.Close()

	for svcRows.Next() {
		var s service
		if err := svcRows.Scan(&s.ID, &s.ProviderID, &s.DurationMinutes); err != nil {
			return nil, err
		}
		dataPool.Services[s.ProviderID] = s
	}

	clientRows, err := pool.Query(ctx, `
		SELECT id FROM clients LIMIT $1
	`, cfg.ClientLimit)
	if err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}
	defer clientRows.Close()

	for clientRows.Next() {
		var id uuid.UUID
		if err := clientRows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Clients = append(dataPool.Clients, id)
	}

	if len(dataPool.Providers) == 0 {
		return nil, fmt.Errorf("no providers loaded")
	}
	if len(dataPool.Clients) == 0 {
		return nil, fmt.Errorf("no clients loaded")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.ReserveRatio:
				s.doReserve(ctx, rng)
			case r < s.config.ReserveRatio+s.config.ConfirmRatio:
				s.doConfirm(ctx, rng)
			case r < s.config.ReserveRatio+s.config.ConfirmRatio+s.config.ReleaseRatio:
				s.doRelease(ctx, rng)
			default:
				s.doListActive(ctx)
			}
		}
	}
}

// randomSlot keeps the slot space deliberately small so that workers
// collide on the same provider/time and exercise the hold conflicts.
func (s *Simulator) randomSlot(rng *rand.Rand) (provider, service, uuid.UUID, string, string) {
	p := s.pool.Providers[rng.Intn(len(s.pool.Providers))]
	svc, ok := s.pool.Services[p.ID]
	if !ok {
		svc = service{ID: uuid.New(), ProviderID: p.ID, DurationMinutes: 30}
	}
	clientID := s.pool.Clients[rng.Intn(len(s.pool.Clients))]

	date := time.Now().AddDate(0, 0, 1+rng.Intn(5)).Format("2006-01-02")
	hour := 9 + rng.Intn(8)
	minute := 15 * rng.Intn(4)
	slotTime := fmt.Sprintf("%02d:%02d", hour, minute)

	return p, svc, clientID, date, slotTime
}

func (s *Simulator) doReserve(ctx context.Context, rng *rand.Rand) {
	p, svc, clientID, date, slotTime := s.randomSlot(rng)

	reqBody := map[string]any{
		"provider_id":      p.ID.String(),
		"shop_id":          p.ShopID.String(),
		"client_id":        clientID.String(),
		"service_id":       svc.ID.String(),
		"date":             date,
		"time":             slotTime,
		"duration_minutes": svc.DurationMinutes,
	}
	body, _ := json.Marshal(reqBody)

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "POST", s.config.APIBaseURL+"/reservations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusCreated {
			success = true
			var resBody struct {
				ID uuid.UUID `json:"id"`
			}
			bodyBytes, _ := io.ReadAll(resp.Body)
			if len(bodyBytes) > 0 {
				json.Unmarshal(bodyBytes, &resBody)
				if resBody.ID != uuid.Nil {
					s.pool.AddReservation(resBody.ID)
				}
			}
		} else if resp.StatusCode == http.StatusConflict {
			conflict = true
		}
	}

	s.metrics.ReserveOp.Record(latency, success, conflict)
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	resID, ok := s.pool.TakeRandomReservation(rng)
	if !ok {
		return
	}

	clientID := s.pool.Clients[rng.Intn(len(s.pool.Clients))]
	serviceAmount := float64(20 + rng.Intn(180))
	tip := float64(rng.Intn(20))

	reqBody := map[string]any{
		"actor_id":       clientID.String(),
		"total_amount":   serviceAmount + tip,
		"service_amount": serviceAmount,
		"tip_amount":     tip,
		"payment_method": "card",
	}
	body, _ := json.Marshal(reqBody)

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/reservations/%s/confirm", s.config.APIBaseURL, resID.String()), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusCreated {
			success = true
		} else if resp.StatusCode == http.StatusConflict {
			conflict = true
		}
	}

	s.metrics.ConfirmOp.Record(latency, success, conflict)
}

func (s *Simulator) doRelease(ctx context.Context, rng *rand.Rand) {
	resID, ok := s.pool.TakeRandomReservation(rng)
	if !ok {
		return
	}

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "DELETE",
		fmt.Sprintf("%s/reservations/%s", s.config.APIBaseURL, resID.String()), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusNoContent
	}

	s.metrics.ReleaseOp.Record(latency, success, false)
}

func (s *Simulator) doListActive(ctx context.Context) {
	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET", s.config.APIBaseURL+"/reservations", nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.ListOp.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Reserve", &s.metrics.ReserveOp)
	printOperationReport("Confirm", &s.metrics.ConfirmOp)
	printOperationReport("Release", &s.metrics.ReleaseOp)
	printOperationReport("List active", &s.metrics.ListOp)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errored := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errored > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errored, float64(errored)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
