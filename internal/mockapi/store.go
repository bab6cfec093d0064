package mockapi

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"golang.org/x/crypto/bcrypt"
)

const (
	// RecentLimit is how many readings a report carries
	RecentLimit = 30
	// HistoryWindow is how many earlier readings the forecast averages
	HistoryWindow = 24
	// AnomalyThreshold is the deviation percentage flagged as anomalous
	AnomalyThreshold = 20.0

	wireTimestamp = "2006-01-02T15:04:05"
)

// Account seeds a login on the mock backend
type Account struct {
	Username string
	Email    string
	Password string
	Role     models.Role
}

// DefaultAccounts are created when no accounts are configured
func DefaultAccounts() []Account {
	return []Account{
		{Username: "admin", Email: "admin@nexus.local", Password: "admin123", Role: models.RoleAdmin},
		{Username: "operator", Email: "user@nexus.local", Password: "user123", Role: models.RoleUser},
	}
}

type account struct {
	id       string
	username string
	email    string
	hash     []byte
	role     models.Role
}

// store is the mock backend's in-memory state
type store struct {
	mu       sync.Mutex
	accounts map[string]*account
	readings []models.Reading // oldest first
	queue    []models.Reading
	status   models.SystemStatus
	nextID   int64
}

func newStore() *store {
	return &store{
		accounts: make(map[string]*account),
		status:   models.StatusIdle,
	}
}

var (
	errEmailTaken    = fmt.Errorf("email already taken")
	errUsernameTaken = fmt.Errorf("username already taken")
)

func (s *store) addAccount(a Account) (*account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(a.Password), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(a.Email)
	if _, exists := s.accounts[key]; exists {
		return nil, errEmailTaken
	}
	for _, existing := range s.accounts {
		if strings.EqualFold(existing.username, a.Username) {
			return nil, errUsernameTaken
		}
	}
	acct := &account{
		id:       uuid.NewString(),
		username: a.Username,
		email:    a.Email,
		hash:     hash,
		role:     a.Role,
	}
	s.accounts[key] = acct
	return acct, nil
}

func (s *store) authenticate(email, password string) (*account, bool) {
	s.mu.Lock()
	acct, ok := s.accounts[strings.ToLower(strings.TrimSpace(email))]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	if bcrypt.CompareHashAndPassword(acct.hash, []byte(password)) != nil {
		return nil, false
	}
	return acct, true
}

func (s *store) users() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]models.User, 0, len(s.accounts))
	for _, a := range s.accounts {
		users = append(users, models.User{ID: a.id, Username: a.username, Email: a.email, Role: a.role})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users
}

func (s *store) setRole(email string, role models.Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return false
	}
	acct.role = role
	return true
}

func (s *store) getStatus() models.SystemStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// setStatus reports whether the status changed
func (s *store) setStatus(status models.SystemStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.status != status
	s.status = status
	return changed
}

func (s *store) loadQueue(readings []models.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = readings
}

func (s *store) queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// next pops the head of the queue, stamped as observed now
func (s *store) next(now time.Time) (models.Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return models.Reading{}, false
	}
	r := s.queue[0]
	s.queue = s.queue[1:]
	r.Timestamp = now
	r.DayOfWeek = now.Weekday().String()
	return s.appendLocked(r), true
}

// add stores r as received, assigning an ID when it has none
func (s *store) add(r models.Reading) models.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(r)
}

func (s *store) appendLocked(r models.Reading) models.Reading {
	s.nextID++
	if r.ID == "" {
		r.ID = strconv.FormatInt(s.nextID, 10)
	}
	s.readings = append(s.readings, r)
	return r
}

func (s *store) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = nil
}

// readingDTO is a reading as the backend serializes it
type readingDTO struct {
	ID                string  `json:"id"`
	Timestamp         string  `json:"timestamp"`
	Temperature       float64 `json:"temperature"`
	Humidity          float64 `json:"humidity"`
	SquareFootage     float64 `json:"squareFootage"`
	Occupancy         int     `json:"occupancy"`
	HVACUsage         string  `json:"hvacUsage"`
	LightingUsage     string  `json:"lightingUsage"`
	RenewableEnergy   float64 `json:"renewableEnergy"`
	DayOfWeek         string  `json:"dayOfWeek"`
	Holiday           string  `json:"holiday"`
	EnergyConsumption float64 `json:"energyConsumption"`
}

func toDTO(r models.Reading) readingDTO {
	return readingDTO{
		ID:                r.ID,
		Timestamp:         r.Timestamp.Format(wireTimestamp),
		Temperature:       r.Temperature,
		Humidity:          r.Humidity,
		SquareFootage:     r.SquareFootage,
		Occupancy:         r.Occupancy,
		HVACUsage:         models.OnOff(r.HVACOn),
		LightingUsage:     models.OnOff(r.LightingOn),
		RenewableEnergy:   r.RenewableEnergy,
		DayOfWeek:         r.DayOfWeek,
		Holiday:           models.YesNo(r.Holiday),
		EnergyConsumption: r.EnergyConsumption,
	}
}

type reportDTO struct {
	Stats          models.Stats     `json:"stats"`
	RecentReadings []readingDTO     `json:"recentReadings"`
	AIInsights     models.AIInsight `json:"aiInsights"`
}

type weeklyDTO struct {
	Day                   string  `json:"day"`
	AvgConsumption        float64 `json:"avgConsumption"`
	ExpectedConsumption   float64 `json:"expectedConsumption"`
	RenewableContribution float64 `json:"renewableContribution"`
}

func (s *store) report() reportDTO {
	s.mu.Lock()
	readings := make([]models.Reading, len(s.readings))
	copy(readings, s.readings)
	s.mu.Unlock()

	out := reportDTO{
		Stats:          aggregate(readings),
		RecentReadings: make([]readingDTO, 0, RecentLimit),
		AIInsights:     insight(readings),
	}
	for i := len(readings) - 1; i >= 0 && len(out.RecentReadings) < RecentLimit; i-- {
		out.RecentReadings = append(out.RecentReadings, toDTO(readings[i]))
	}
	return out
}

func aggregate(readings []models.Reading) models.Stats {
	if len(readings) == 0 {
		return models.Stats{}
	}
	temps := make([]float64, len(readings))
	loads := make([]float64, len(readings))
	for i, r := range readings {
		temps[i] = r.Temperature
		loads[i] = r.EnergyConsumption
	}
	avg, _ := stats.Mean(temps)
	total, _ := stats.Sum(loads)
	peak, _ := stats.Max(loads)
	return models.Stats{
		AverageTemperature:     avg,
		TotalEnergyConsumption: total,
		PeakLoad:               peak,
		TotalRecords:           int64(len(readings)),
	}
}

// insight compares the newest reading against the mean of the readings
// before it.
func insight(readings []models.Reading) models.AIInsight {
	if len(readings) < 2 {
		return models.AIInsight{OptimizationSuggestion: "Collecting history"}
	}
	latest := readings[len(readings)-1]
	start := max(0, len(readings)-1-HistoryWindow)
	history := make([]float64, 0, HistoryWindow)
	for _, r := range readings[start : len(readings)-1] {
		history = append(history, r.EnergyConsumption)
	}
	expected, _ := stats.Mean(history)

	out := models.AIInsight{
		ExpectedValue: expected,
		ActualValue:   latest.EnergyConsumption,
	}
	if expected != 0 {
		out.DeviationPercent = (latest.EnergyConsumption - expected) / expected * 100
	}
	out.AnomalyDetected = out.DeviationPercent > AnomalyThreshold || out.DeviationPercent < -AnomalyThreshold

	switch {
	case latest.HVACOn && latest.Occupancy == 0:
		out.OptimizationSuggestion = "HVAC is running in an unoccupied building"
	case out.AnomalyDetected && out.DeviationPercent > 0:
		out.OptimizationSuggestion = "Consumption above forecast: review HVAC and lighting schedules"
	case out.AnomalyDetected:
		out.OptimizationSuggestion = "Consumption well below forecast: check meter connectivity"
	default:
		out.OptimizationSuggestion = "Operating within expected range"
	}
	return out
}

func (s *store) weekly() []weeklyDTO {
	s.mu.Lock()
	defer s.mu.Unlock()

	type acc struct {
		loads, renewable []float64
	}
	byDay := make(map[string]*acc)
	all := make([]float64, 0, len(s.readings))
	for _, r := range s.readings {
		a, ok := byDay[r.DayOfWeek]
		if !ok {
			a = &acc{}
			byDay[r.DayOfWeek] = a
		}
		a.loads = append(a.loads, r.EnergyConsumption)
		a.renewable = append(a.renewable, r.RenewableEnergy)
		all = append(all, r.EnergyConsumption)
	}
	expected, _ := stats.Mean(all)

	out := make([]weeklyDTO, 0, len(byDay))
	for day, a := range byDay {
		avg, _ := stats.Mean(a.loads)
		renewable, _ := stats.Mean(a.renewable)
		out = append(out, weeklyDTO{
			Day:                   day,
			AvgConsumption:        avg,
			ExpectedConsumption:   expected,
			RenewableContribution: renewable,
		})
	}
	// map order is random; the client sorts by weekday
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}
