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

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/naminath/opd-booking/internal/booking"
	"github.com/naminath/opd-booking/internal/config"
	"github.com/naminath/opd-booking/internal/db"
)

// The simulator hammers the booking API with concurrent create attempts for a
// small set of slots, then audits the database: no slot may end up with more
// than booking.RoomCount active appointments, no matter how hard it raced.

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	Days        int
	SlotsPerDay int
	ReadRatio   float64
	PostgresDSN string
}

type SlotRef struct {
	Date string
	Time string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	SlotFull  int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, outcome string) {
	atomic.AddInt64(&om.Total, 1)
	switch outcome {
	case "success":
		atomic.AddInt64(&om.Success, 1)
	case "slot_full":
		atomic.AddInt64(&om.SlotFull, 1)
	case "conflict":
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
	Booking      OperationMetrics
	Availability OperationMetrics
	Alternatives OperationMetrics
	ListByDate   OperationMetrics
}

type Simulator struct {
	config  SimConfig
	slots   []SlotRef
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

	log.Printf("config: duration=%s workers=%d days=%d slots_per_day=%d read=%.2f",
		cfg.Duration, cfg.Workers, cfg.Days, cfg.SlotsPerDay, cfg.ReadRatio)

	gofakeit.Seed(time.Now().UnixNano())

	sim := &Simulator{
		config: cfg,
		slots:  buildSlotPool(cfg),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	log.Printf("targeting %d slots", len(sim.slots))

	// Run simulation
	sim.Run()

	// Print report, then audit the invariant directly in Postgres
	sim.PrintReport()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	if err := auditCapacity(ctx, pgPool); err != nil {
		log.Fatalf("CAPACITY AUDIT FAILED: %v", err)
	}
	log.Println("capacity audit passed: no slot exceeds room count")
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	return SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 20),
		Days:        getInt("SIM_DAYS", 2),
		SlotsPerDay: getInt("SIM_SLOTS_PER_DAY", 4),
		ReadRatio:   getFloat("SIM_READ_RATIO", 0.3),
		PostgresDSN: baseCfg.PostgresDSN,
	}
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

// buildSlotPool keeps the slot pool deliberately small so that many workers
// pile onto the same slots and the saturation paths actually get exercised.
func buildSlotPool(cfg SimConfig) []SlotRef {
	grid := booking.TimeSlots()
	perDay := cfg.SlotsPerDay
	if perDay > len(grid) {
		perDay = len(grid)
	}

	var slots []SlotRef
	for d := 1; d <= cfg.Days; d++ {
		date := time.Now().AddDate(0, 0, d).Format("2006-01-02")
		for i := 0; i < perDay; i++ {
			slots = append(slots, SlotRef{Date: date, Time: grid[i]})
		}
	}
	return slots
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
			if rng.Float64() < s.config.ReadRatio {
				switch rng.Intn(3) {
				case 0:
					s.doAvailability(ctx, rng)
				case 1:
					s.doAlternatives(ctx, rng)
				case 2:
					s.doListByDate(ctx, rng)
				}
			} else {
				s.doBooking(ctx, rng)
			}
		}
	}
}

func (s *Simulator) randomSlot(rng *rand.Rand) SlotRef {
	return s.slots[rng.Intn(len(s.slots))]
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	slot := s.randomSlot(rng)

	start := time.Now()

	reqBody := map[string]any{
		"name":         gofakeit.Name(),
		"phoneNo":      gofakeit.Phone(),
		"selectedDate": slot.Date,
		"selectedTime": slot.Time,
	}
	body, _ := json.Marshal(reqBody)

	req, _ := http.NewRequestWithContext(ctx, "POST",
		s.config.APIBaseURL+"/api/v1/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	outcome := "error"
	if err == nil {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(resp.Body)

		switch resp.StatusCode {
		case http.StatusCreated:
			outcome = "success"
		case http.StatusBadRequest:
			var envelope struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(bodyBytes, &envelope)
			if strings.Contains(envelope.Message, "full") {
				outcome = "slot_full"
			}
		case http.StatusConflict:
			outcome = "conflict"
		}
	}

	s.metrics.Booking.Record(latency, outcome)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	slot := s.randomSlot(rng)

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/api/v1/availability?date=%s&time=%s", s.config.APIBaseURL, slot.Date, slot.Time), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	outcome := "error"
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			outcome = "success"
		}
	}

	s.metrics.Availability.Record(latency, outcome)
}

func (s *Simulator) doAlternatives(ctx context.Context, rng *rand.Rand) {
	slot := s.randomSlot(rng)

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/api/v1/availability/alternatives?date=%s&time=%s", s.config.APIBaseURL, slot.Date, slot.Time), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	outcome := "error"
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			outcome = "success"
		}
	}

	s.metrics.Alternatives.Record(latency, outcome)
}

func (s *Simulator) doListByDate(ctx context.Context, rng *rand.Rand) {
	slot := s.randomSlot(rng)

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/api/v1/appointments/date/%s", s.config.APIBaseURL, slot.Date), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	outcome := "error"
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			outcome = "success"
		}
	}

	s.metrics.ListByDate.Record(latency, outcome)
}

func auditCapacity(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx, `
		SELECT visit_date, slot_time, count(*)
		FROM appointments
		WHERE status <> 'cancelled'
		GROUP BY visit_date, slot_time
		HAVING count(*) > $1
	`, booking.RoomCount)
	if err != nil {
		return fmt.Errorf("audit query: %w", err)
	}
	defer rows.Close()

	var violations []string
	for rows.Next() {
		var date, slot string
		var count int
		if err := rows.Scan(&date, &slot, &count); err != nil {
			return err
		}
		violations = append(violations, fmt.Sprintf("%s %s has %d active bookings", date, slot, count))
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(violations) > 0 {
		return fmt.Errorf("capacity invariant violated: %s", strings.Join(violations, "; "))
	}
	return nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Alternatives", &s.metrics.Alternatives)
	printOperationReport("List by Date", &s.metrics.ListByDate)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	slotFull := atomic.LoadInt64(&om.SlotFull)
	conflict := atomic.LoadInt64(&om.Conflict)
	errCount := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if slotFull > 0 {
		fmt.Printf("  Slot full: %d (%.1f%%)\n", slotFull, float64(slotFull)/float64(total)*100)
	}
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errCount > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errCount, float64(errCount)/float64(total)*100)
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
