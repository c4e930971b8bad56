package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/logger"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	BookingRatio  float64
	ReadRatio     float64
	Patients      int
	SlotLimit     int
	AdminEmail    string
	AdminPassword string
	// AuthRPS paces /register and /login so the server's per-IP limiter is not tripped.
	AuthRPS float64
}

// DataPool holds the bearer tokens of the simulated patients and the slots they fight over.
type DataPool struct {
	Tokens []string
	Slots  []uuid.UUID
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
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
	return avg, latencies[0], latencies[len(latencies)-1], percentile(latencies, 50), percentile(latencies, 95)
}

// percentile expects sorted, non-empty input.
func percentile(sorted []time.Duration, p int) time.Duration {
	return sorted[min(len(sorted)*p/100, len(sorted)-1)]
}

type Metrics struct {
	Booking    OperationMetrics
	ListSlots  OperationMetrics
	MyBookings OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     *zap.Logger
	authLim *rate.Limiter

	mu     sync.Mutex
	winner map[uuid.UUID]int // slot -> 201 responses seen
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load base config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(baseCfg.Env, baseCfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	log.Info("simulator starting")

	cfg := loadConfig(baseCfg)
	if err := validateConfig(cfg); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	log.Info("config",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking", cfg.BookingRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	sim := newSimulator(cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	sim.pool, err = sim.loadDataPool(ctx)
	cancel()
	if err != nil {
		log.Fatal("load data pool", zap.Error(err))
	}
	log.Info("loaded", zap.Int("patients", len(sim.pool.Tokens)), zap.Int("slots", len(sim.pool.Slots)))

	// Run simulation
	sim.Run()

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	verifyErr := sim.Verify(ctx)

	// Print report
	sim.PrintReport()

	if verifyErr != nil {
		log.Error("double booking detected", zap.Error(verifyErr))
		os.Exit(1)
	}
	log.Info("no slot was booked twice")
}

func newSimulator(cfg SimConfig, log *zap.Logger) *Simulator {
	return &Simulator{
		config: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log:     log,
		authLim: rate.NewLimiter(rate.Limit(cfg.AuthRPS), 1),
		winner:  make(map[uuid.UUID]int),
	}
}

func loadConfig(base config.Config) SimConfig {
	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.7),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.3),
		Patients:      getInt("SIM_PATIENTS", 50),
		SlotLimit:     getInt("SIM_SLOT_LIMIT", 20),
		AdminEmail:    base.AdminEmail,
		AdminPassword: base.AdminPassword,
		AuthRPS:       getFloat("SIM_AUTH_RPS", 4),
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.AuthRPS <= 0 {
		return fmt.Errorf("SIM_AUTH_RPS must be > 0")
	}
	if cfg.Patients <= 0 || cfg.SlotLimit <= 0 {
		return fmt.Errorf("SIM_PATIENTS and SIM_SLOT_LIMIT must be > 0")
	}
	return nil
}

// loadDataPool registers fresh patients through the API and picks the earliest open slots.
func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	pool := &DataPool{}
	const password = "sim-password"

	for i := 0; i < s.config.Patients; i++ {
		email := fmt.Sprintf("sim-%s@%s", uuid.NewString()[:8], gofakeit.DomainName())
		reg := map[string]string{"name": gofakeit.Name(), "email": email, "password": password}
		if status, _, err := s.authCall(ctx, "/register", reg); err != nil || status != http.StatusCreated {
			return nil, fmt.Errorf("register %s: status=%d err=%v", email, status, err)
		}
		tok, err := s.login(ctx, email, password)
		if err != nil {
			return nil, err
		}
		pool.Tokens = append(pool.Tokens, tok)
	}

	status, body, err := s.call(ctx, http.MethodGet, "/slots", "", nil)
	if err != nil || status != http.StatusOK {
		return nil, fmt.Errorf("load slots: status=%d err=%v", status, err)
	}
	var slots []struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.Unmarshal(body, &slots); err != nil {
		return nil, fmt.Errorf("decode slots: %w", err)
	}
	for i := 0; i < len(slots) && i < s.config.SlotLimit; i++ {
		pool.Slots = append(pool.Slots, slots[i].ID)
	}

	if len(pool.Slots) == 0 {
		return nil, fmt.Errorf("no slots loaded")
	}

	return pool, nil
}

func (s *Simulator) login(ctx context.Context, email, password string) (string, error) {
	status, body, err := s.authCall(ctx, "/login", map[string]string{"email": email, "password": password})
	if err != nil || status != http.StatusOK {
		return "", fmt.Errorf("login %s: status=%d err=%v", email, status, err)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode login: %w", err)
	}
	return resp.Token, nil
}

const maxAuthAttempts = 5

// authCall posts to a rate-limited route at the configured pace. A 429 is retried after the
// server's Retry-After.
func (s *Simulator) authCall(ctx context.Context, path string, payload any) (int, []byte, error) {
	for attempt := 1; ; attempt++ {
		if err := s.authLim.Wait(ctx); err != nil {
			return 0, nil, err
		}
		status, header, body, err := s.send(ctx, http.MethodPost, path, "", payload)
		if err != nil || status != http.StatusTooManyRequests || attempt == maxAuthAttempts {
			return status, body, err
		}

		wait := retryAfter(header.Get("Retry-After"))
		s.log.Debug("auth route throttled, backing off", zap.String("path", path), zap.Duration("wait", wait))
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func retryAfter(v string) time.Duration {
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return time.Second
}

func (s *Simulator) call(ctx context.Context, method, path, token string, payload any) (int, []byte, error) {
	status, _, body, err := s.send(ctx, method, path, token, payload)
	return status, body, err
}

func (s *Simulator) send(ctx context.Context, method, path, token string, payload any) (int, http.Header, []byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, body)
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp.StatusCode, resp.Header, respBody, err
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info("starting simulation", zap.Duration("duration", s.config.Duration), zap.Int("workers", s.config.Workers))

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if rng.Float64() < s.config.BookingRatio {
				s.doBooking(ctx, rng)
			} else if rng.Intn(2) == 0 {
				s.doListSlots(ctx)
			} else {
				s.doMyBookings(ctx, rng)
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	slotID := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	token := s.pool.Tokens[rng.Intn(len(s.pool.Tokens))]

	start := time.Now()
	status, _, err := s.call(ctx, http.MethodPost, "/book", token, map[string]string{"slotId": slotID.String()})
	latency := time.Since(start)

	success := err == nil && status == http.StatusCreated
	conflict := err == nil && status == http.StatusConflict
	if success {
		s.mu.Lock()
		s.winner[slotID]++
		s.mu.Unlock()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doListSlots(ctx context.Context) {
	start := time.Now()
	status, _, err := s.call(ctx, http.MethodGet, "/slots", "", nil)
	if errors.Is(err, context.DeadlineExceeded) {
		return
	}
	s.metrics.ListSlots.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doMyBookings(ctx context.Context, rng *rand.Rand) {
	token := s.pool.Tokens[rng.Intn(len(s.pool.Tokens))]

	start := time.Now()
	status, _, err := s.call(ctx, http.MethodGet, "/my-bookings", token, nil)
	if errors.Is(err, context.DeadlineExceeded) {
		return
	}
	s.metrics.MyBookings.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

// Verify checks the admin view and the client-side tally for any slot booked more than once.
func (s *Simulator) Verify(ctx context.Context) error {
	s.mu.Lock()
	for slotID, n := range s.winner {
		if n > 1 {
			s.mu.Unlock()
			return fmt.Errorf("slot %s got %d successful bookings", slotID, n)
		}
	}
	s.mu.Unlock()

	token, err := s.login(ctx, s.config.AdminEmail, s.config.AdminPassword)
	if err != nil {
		s.log.Warn("admin login failed, skipping server-side check", zap.Error(err))
		return nil
	}
	status, body, err := s.call(ctx, http.MethodGet, "/all-bookings", token, nil)
	if err != nil || status != http.StatusOK {
		return fmt.Errorf("all-bookings: status=%d err=%v", status, err)
	}
	var all []struct {
		SlotID uuid.UUID `json:"slot_id"`
	}
	if err := json.Unmarshal(body, &all); err != nil {
		return fmt.Errorf("decode all-bookings: %w", err)
	}
	seen := make(map[uuid.UUID]bool, len(all))
	for _, b := range all {
		if seen[b.SlotID] {
			return fmt.Errorf("slot %s appears twice in all-bookings", b.SlotID)
		}
		seen[b.SlotID] = true
	}
	return nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Contested slots: %d, booked: %d\n", len(s.pool.Slots), len(s.winner))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("List slots", &s.metrics.ListSlots)
	printOperationReport("My bookings", &s.metrics.MyBookings)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errs := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errs > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errs, float64(errs)/float64(total)*100)
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

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
