package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/civic-gov/platform/internal/ranking"
	"github.com/civic-gov/platform/internal/scoring"
	"github.com/civic-gov/platform/internal/shared/errors"
	"github.com/civic-gov/platform/internal/shared/types"
)

// memStore is an in-memory worker store for handler tests
type memStore struct {
	mu      sync.Mutex
	workers map[types.ID]*Worker
}

func newMemStore() *memStore {
	return &memStore{workers: make(map[types.ID]*Worker)}
}

func (s *memStore) Create(ctx context.Context, w *Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.workers[w.ID]; exists {
		return errors.Conflict("worker already exists")
	}
	stored := *w
	s.workers[w.ID] = &stored
	return nil
}

func (s *memStore) Get(ctx context.Context, id types.ID) (*Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[id]
	if !ok {
		return nil, errors.NotFound("worker", id.String())
	}
	copied := *w
	return &copied, nil
}

func (s *memStore) Update(ctx context.Context, w *Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workers[w.ID]; !ok {
		return errors.NotFound("worker", w.ID.String())
	}
	stored := *w
	s.workers[w.ID] = &stored
	return nil
}

func (s *memStore) SetActive(ctx context.Context, id types.ID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[id]
	if !ok {
		return errors.NotFound("worker", id.String())
	}
	w.Active = active
	return nil
}

func (s *memStore) FindActive(ctx context.Context) ([]Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []Worker
	for _, w := range s.workers {
		if w.Active {
			result = append(result, *w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *memStore) List(ctx context.Context, filter ListFilter) ([]Worker, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []Worker
	for _, w := range s.workers {
		if filter.Active != nil && w.Active != *filter.Active {
			continue
		}
		if filter.Department != nil && w.DepartmentName != *filter.Department {
			continue
		}
		result = append(result, *w)
	}
	return result, len(result), nil
}

func (s *memStore) CacheMetrics(ctx context.Context, id types.ID, m MetricsSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[id]
	if !ok {
		return errors.NotFound("worker", id.String())
	}
	w.CivicScore = m.CivicScore
	w.TasksCompleted = m.TasksCompleted
	w.EarnedBadges = m.EarnedBadges
	return nil
}

// stubCounts serves per-worker issue counts to the scoring engine
type stubCounts struct {
	counts map[types.ID][2]int // assigned, completed
}

func (s *stubCounts) CountByAssignee(ctx context.Context, workerID types.ID) (int, int, error) {
	c := s.counts[workerID]
	return c[0], c[1], nil
}

func addWorker(t *testing.T, store *memStore, name, department string) types.ID {
	t.Helper()
	w := &Worker{
		ID:             types.NewID(),
		Name:           name,
		DepartmentName: department,
		Active:         true,
	}
	if err := store.Create(context.Background(), w); err != nil {
		t.Fatalf("Create(%s): %v", name, err)
	}
	return w.ID
}

func newScoreServer(t *testing.T, store *memStore, counts *stubCounts) *httptest.Server {
	t.Helper()
	scorer := scoring.NewEngine(counts)
	rank := ranking.NewEngine(NewRosterSource(store), scorer, 4)
	handler := NewHandler(store, scorer, rank, nil)
	srv := httptest.NewServer(handler.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, dest any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestGetScoreComputesFullReport(t *testing.T) {
	store := newMemStore()
	id := addWorker(t, store, "Ana", "electricity")
	counts := &stubCounts{counts: map[types.ID][2]int{id: {10, 8}}}
	srv := newScoreServer(t, store, counts)

	var resp ScoreResponse
	if status := getJSON(t, srv.URL+"/workers/"+id.String()+"/score", &resp); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	// 8 completed * 100 + 80% rate * 2
	if resp.CivicScore != 960 {
		t.Errorf("CivicScore = %d, want 960", resp.CivicScore)
	}
	if resp.CompletionRate != 80 {
		t.Errorf("CompletionRate = %d, want 80", resp.CompletionRate)
	}
	if resp.Level != 1 {
		t.Errorf("Level = %d, want 1", resp.Level)
	}
	if resp.PointsToNextLevel != 40 {
		t.Errorf("PointsToNextLevel = %d, want 40", resp.PointsToNextLevel)
	}
	if resp.Rank != 1 {
		t.Errorf("Rank = %d, want 1 (only ranked worker)", resp.Rank)
	}

	// 8 completed at an 80% rate, ranked first of one
	earned := make(map[string]bool)
	for _, b := range resp.Badges {
		earned[b.ID] = true
	}
	for _, want := range []string{"first-response", "getting-started", "reliable", "number-one"} {
		if !earned[want] {
			t.Errorf("badge %q not earned; got %v", want, resp.Badges)
		}
	}
}

func TestGetScoreWritesBackMetrics(t *testing.T) {
	store := newMemStore()
	id := addWorker(t, store, "Ana", "water")
	counts := &stubCounts{counts: map[types.ID][2]int{id: {4, 4}}}
	srv := newScoreServer(t, store, counts)

	if status := getJSON(t, srv.URL+"/workers/"+id.String()+"/score", nil); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	w, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if w.CivicScore != 600 {
		t.Errorf("written-back CivicScore = %d, want 600", w.CivicScore)
	}
	if w.TasksCompleted != 4 {
		t.Errorf("written-back TasksCompleted = %d, want 4", w.TasksCompleted)
	}
	if w.EarnedBadges == 0 {
		t.Error("written-back EarnedBadges = 0, want > 0")
	}
}

func TestGetScoreUnknownWorker(t *testing.T) {
	store := newMemStore()
	srv := newScoreServer(t, store, &stubCounts{counts: map[types.ID][2]int{}})

	status := getJSON(t, srv.URL+"/workers/"+types.NewID().String()+"/score", nil)
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
}

func TestLeaderboardOrderingAndFilter(t *testing.T) {
	store := newMemStore()
	a := addWorker(t, store, "Ana", "water")
	b := addWorker(t, store, "Boris", "pwd")
	c := addWorker(t, store, "Vera", "water")
	counts := &stubCounts{counts: map[types.ID][2]int{
		a: {10, 10}, // 1200
		b: {10, 5},  // 600
		c: {10, 8},  // 960
	}}
	srv := newScoreServer(t, store, counts)

	var board struct {
		Data  []ranking.Entry `json:"data"`
		Total int             `json:"total"`
	}
	if status := getJSON(t, srv.URL+"/leaderboard", &board); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if board.Total != 3 {
		t.Fatalf("Total = %d, want 3", board.Total)
	}
	wantOrder := []types.ID{a, c, b}
	for i, want := range wantOrder {
		if board.Data[i].WorkerID != want {
			t.Errorf("rank %d = %s, want %s", i+1, board.Data[i].WorkerID, want)
		}
		if board.Data[i].Rank != i+1 {
			t.Errorf("Rank at position %d = %d", i, board.Data[i].Rank)
		}
	}

	// Department filter narrows rows but keeps global ranks
	if status := getJSON(t, srv.URL+"/leaderboard?department=water", &board); status != http.StatusOK {
		t.Fatalf("filtered status = %d", status)
	}
	if len(board.Data) != 2 {
		t.Fatalf("filtered rows = %d, want 2", len(board.Data))
	}
	if board.Data[0].WorkerID != a || board.Data[0].Rank != 1 {
		t.Errorf("filtered first = %s rank %d", board.Data[0].WorkerID, board.Data[0].Rank)
	}
	if board.Data[1].WorkerID != c || board.Data[1].Rank != 2 {
		t.Errorf("filtered second = %s rank %d", board.Data[1].WorkerID, board.Data[1].Rank)
	}
}

func TestLeaderboardLimit(t *testing.T) {
	store := newMemStore()
	counts := &stubCounts{counts: map[types.ID][2]int{}}
	for i := 0; i < 5; i++ {
		id := addWorker(t, store, "Worker", "swm")
		counts.counts[id] = [2]int{i + 1, i + 1}
	}
	srv := newScoreServer(t, store, counts)

	var board struct {
		Data  []ranking.Entry `json:"data"`
		Total int             `json:"total"`
	}
	if status := getJSON(t, srv.URL+"/leaderboard?limit=2", &board); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(board.Data) != 2 {
		t.Errorf("rows = %d, want 2", len(board.Data))
	}
	if board.Total != 5 {
		t.Errorf("Total = %d, want 5", board.Total)
	}
}

func TestInactiveWorkerNotRanked(t *testing.T) {
	store := newMemStore()
	a := addWorker(t, store, "Ana", "water")
	b := addWorker(t, store, "Boris", "water")
	counts := &stubCounts{counts: map[types.ID][2]int{
		a: {10, 10},
		b: {10, 9},
	}}
	srv := newScoreServer(t, store, counts)

	if err := store.SetActive(context.Background(), a, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	var board struct {
		Data []ranking.Entry `json:"data"`
	}
	getJSON(t, srv.URL+"/leaderboard", &board)
	if len(board.Data) != 1 {
		t.Fatalf("rows = %d, want 1", len(board.Data))
	}
	if board.Data[0].WorkerID != b || board.Data[0].Rank != 1 {
		t.Errorf("entry = %s rank %d, want %s rank 1", board.Data[0].WorkerID, board.Data[0].Rank, b)
	}

	// The inactive worker still has a score, just no rank
	var resp ScoreResponse
	if status := getJSON(t, srv.URL+"/workers/"+a.String()+"/score", &resp); status != http.StatusOK {
		t.Fatalf("score status = %d", status)
	}
	if resp.Rank != 0 {
		t.Errorf("Rank = %d, want 0 for inactive worker", resp.Rank)
	}
	if resp.CivicScore != 1200 {
		t.Errorf("CivicScore = %d, want 1200", resp.CivicScore)
	}
}
