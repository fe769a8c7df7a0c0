package scan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/kurabe/internal/ai"
	"github.com/hyperjump/kurabe/internal/ai/mock"
	"github.com/hyperjump/kurabe/internal/extract"
	"github.com/hyperjump/kurabe/internal/ingest"
	"github.com/hyperjump/kurabe/internal/models"
	"github.com/hyperjump/kurabe/internal/similarity"
	"github.com/hyperjump/kurabe/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeComparer scores by the content of the corpus side.
type fakeComparer struct {
	mu     sync.Mutex
	scores map[string]float64
	panics map[string]bool
	calls  int
}

func (f *fakeComparer) Score(_ context.Context, _, b similarity.Text) similarity.Result {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.panics[b.Content] {
		panic("comparison exploded")
	}
	s := f.scores[b.Content]
	return similarity.Result{Overall: s, Traditional: &s, Method: models.MethodStatistical, TraditionalMethod: models.MethodStatistical}
}

func (f *fakeComparer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "scan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newScanner(t *testing.T, store storage.Storage, c Comparer, opts ...Option) *Scanner {
	t.Helper()
	s, err := NewScanner(store, c, append([]Option{WithWorkers(3)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(s.Release)
	return s
}

func seedUser(t *testing.T, store storage.Storage, id string, credits int) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, store.CreateUser(context.Background(), &models.User{
		ID: id, Username: "name-" + id, Credits: credits, TotalCreditsGranted: credits,
		LastCreditReset: now, CreatedAt: now,
	}))
}

func seedDoc(t *testing.T, store storage.Storage, id, content string) *models.Document {
	t.Helper()
	now := time.Now().UTC()
	doc := &models.Document{
		ID: id, OwnerID: "seed", Title: id + ".txt", Content: content,
		ContentHash: ingest.ContentHash(content), FileType: "txt", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.CreateDocument(context.Background(), doc))
	return doc
}

func upload(content string) *models.Upload {
	return &models.Upload{Filename: "new.txt", Content: []byte(content)}
}

func topScores(res *models.ScanResult) []float64 {
	out := make([]float64, len(res.TopMatches))
	for i, m := range res.TopMatches {
		out[i] = m.Score
	}
	return out
}

func TestSubmitScan_zeroBalanceChangesNothing(t *testing.T) {
	store := newStore(t)
	seedUser(t, store, "u1", 0)
	seedDoc(t, store, "d1", "existing text")
	cmp := &fakeComparer{scores: map[string]float64{"existing text": 0.9}}
	s := newScanner(t, store, cmp)

	_, err := s.SubmitScan(context.Background(), upload("new text"), "u1")
	require.ErrorIs(t, err, ErrInsufficientCredits)

	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Documents)
	assert.Equal(t, int64(0), st.ScanLogs)
	assert.Equal(t, int64(0), st.Matches)
	user, err := store.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, user.Credits)
	assert.Equal(t, 0, cmp.callCount())
}

func TestSubmitScan_thresholdAndRanking(t *testing.T) {
	store := newStore(t)
	seedUser(t, store, "u1", 5)
	scores := []float64{0.40, 0.95, 0.0, 0.60, 0.10, 0.80}
	cmp := &fakeComparer{scores: map[string]float64{}}
	for i, sc := range scores {
		content := fmt.Sprintf("corpus document %d", i)
		seedDoc(t, store, fmt.Sprintf("d%d", i), content)
		cmp.scores[content] = sc
	}
	s := newScanner(t, store, cmp)

	res, err := s.SubmitScan(context.Background(), upload("the new upload"), "u1")
	require.NoError(t, err)

	assert.Equal(t, []float64{0.95, 0.80, 0.60}, topScores(res))
	assert.Equal(t, 3, res.MatchesFound)
	assert.Equal(t, 4, res.Credits)
	assert.Equal(t, "d1", res.TopMatches[0].DocumentID)
	assert.Equal(t, models.TierExact, res.TopMatches[0].Tier)
	assert.Equal(t, models.TierHigh, res.TopMatches[1].Tier)
	assert.Equal(t, models.TierMedium, res.TopMatches[2].Tier)
	assert.Equal(t, 6, cmp.callCount())

	log, err := store.GetScanLog(context.Background(), res.ScanLogID)
	require.NoError(t, err)
	assert.Equal(t, 0.95, log.OverallScore)
	assert.Equal(t, res.DocumentID, log.DocumentID)
	assert.Len(t, log.TopMatches, 3)

	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.Matches)
	assert.Equal(t, int64(7), st.Documents)
	assert.Equal(t, int64(1), st.ScanLogs)
}

func TestSubmitScan_noMatchesStillCharged(t *testing.T) {
	store := newStore(t)
	seedUser(t, store, "u1", 1)
	seedDoc(t, store, "d1", "unrelated")
	s := newScanner(t, store, &fakeComparer{scores: map[string]float64{"unrelated": 0.1}})

	res, err := s.SubmitScan(context.Background(), upload("something"), "u1")
	require.NoError(t, err)
	assert.Empty(t, res.TopMatches)
	assert.Equal(t, 0, res.Credits)

	log, err := store.GetScanLog(context.Background(), res.ScanLogID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, log.OverallScore)
	assert.Empty(t, log.TopMatches)
}

func TestSubmitScan_topKBoundsSummaryNotPersistence(t *testing.T) {
	store := newStore(t)
	seedUser(t, store, "u1", 1)
	cmp := &fakeComparer{scores: map[string]float64{}}
	for i := 0; i < 7; i++ {
		content := fmt.Sprintf("doc %d", i)
		seedDoc(t, store, fmt.Sprintf("d%d", i), content)
		cmp.scores[content] = 0.5 + float64(i)/100
	}
	s := newScanner(t, store, cmp)

	res, err := s.SubmitScan(context.Background(), upload("new"), "u1")
	require.NoError(t, err)
	assert.Len(t, res.TopMatches, 5)
	assert.Equal(t, 7, res.MatchesFound)
	assert.Equal(t, "d6", res.TopMatches[0].DocumentID)

	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), st.Matches)
}

func TestScan_tiesKeepCorpusOrder(t *testing.T) {
	store := newStore(t)
	seedUser(t, store, "u1", 10)
	cmp := &fakeComparer{scores: map[string]float64{}}
	var corpus []*models.Document
	for _, id := range []string{"z", "m", "a", "q"} {
		corpus = append(corpus, seedDoc(t, store, id, "text "+id))
		cmp.scores["text "+id] = 0.7
	}
	s := newScanner(t, store, cmp, WithWorkers(4))
	user, err := store.GetUser(context.Background(), "u1")
	require.NoError(t, err)

	in := ingest.NewIngester(nil)
	for run := 0; run < 3; run++ {
		doc, err := in.Build(upload(fmt.Sprintf("probe %d", run)), "u1")
		require.NoError(t, err)
		res, err := s.Scan(context.Background(), doc, corpus, user)
		require.NoError(t, err)
		got := make([]string, len(res.TopMatches))
		for i, m := range res.TopMatches {
			got[i] = m.DocumentID
		}
		assert.Equal(t, []string{"z", "m", "a", "q"}, got)
	}
}

func TestScan_storedDocumentInOwnCorpus(t *testing.T) {
	store := newStore(t)
	seedUser(t, store, "u1", 2)
	a := seedDoc(t, store, "a", "text a")
	n := seedDoc(t, store, "n", "text n")
	cmp := &fakeComparer{scores: map[string]float64{"text a": 0.8, "text n": 1.0}}
	s := newScanner(t, store, cmp)
	user, err := store.GetUser(context.Background(), "u1")
	require.NoError(t, err)

	res, err := s.Scan(context.Background(), n, []*models.Document{a, n}, user)
	require.NoError(t, err)
	require.Len(t, res.TopMatches, 1)
	assert.Equal(t, "a", res.TopMatches[0].DocumentID)
	assert.Equal(t, 1, res.Credits)
	assert.Equal(t, 1, cmp.callCount())

	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Documents)
	assert.Equal(t, int64(1), st.Matches)
	assert.Equal(t, int64(1), st.ScanLogs)
}

func TestScan_pairFailureIsIsolated(t *testing.T) {
	store := newStore(t)
	seedUser(t, store, "u1", 1)
	seedDoc(t, store, "good", "good text")
	seedDoc(t, store, "bad", "bad text")
	cmp := &fakeComparer{
		scores: map[string]float64{"good text": 0.9, "bad text": 0.99},
		panics: map[string]bool{"bad text": true},
	}
	s := newScanner(t, store, cmp)

	res, err := s.SubmitScan(context.Background(), upload("probe"), "u1")
	require.NoError(t, err)
	require.Len(t, res.TopMatches, 1)
	assert.Equal(t, "good", res.TopMatches[0].DocumentID)
}

func TestSubmitScan_parseErrorNotCharged(t *testing.T) {
	store := newStore(t)
	seedUser(t, store, "u1", 2)
	s := newScanner(t, store, &fakeComparer{})

	_, err := s.SubmitScan(context.Background(), &models.Upload{Filename: "slides.pptx", Content: []byte("x")}, "u1")
	var pe *extract.ParseError
	require.ErrorAs(t, err, &pe)

	_, err = s.SubmitScan(context.Background(), &models.Upload{Filename: "empty.txt"}, "u1")
	require.ErrorAs(t, err, &pe)

	user, err := store.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, user.Credits)
}

func TestSubmitScan_unknownUser(t *testing.T) {
	s := newScanner(t, newStore(t), &fakeComparer{})
	_, err := s.SubmitScan(context.Background(), upload("x"), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

// failingCommitStore fails the final commit.
type failingCommitStore struct {
	*storage.SQLiteStorage
}

func (f failingCommitStore) CommitScan(context.Context, *storage.ScanCommit) (int, error) {
	return 0, errors.New("disk full")
}

func TestSubmitScan_persistenceFailureNotCharged(t *testing.T) {
	store := newStore(t)
	seedUser(t, store, "u1", 3)
	seedDoc(t, store, "d1", "existing")
	s := newScanner(t, failingCommitStore{store}, &fakeComparer{scores: map[string]float64{"existing": 0.9}})

	_, err := s.SubmitScan(context.Background(), upload("probe"), "u1")
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)

	user, err := store.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, user.Credits)
	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.ScanLogs)
}

func TestSubmitScan_primaryTimeoutSecondaryAnswers(t *testing.T) {
	store := newStore(t)
	seedUser(t, store, "u1", 1)
	seedDoc(t, store, "d1", "rainfall patterns in the spring season")

	primary := &mock.Provider{
		ProviderName: "mistral",
		CompareFunc: func(ctx context.Context, _, _ string) (float64, error) {
			ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
			defer cancel()
			<-ctx.Done()
			return 0, ai.Unavailable("mistral", ctx.Err())
		},
	}
	secondary := mock.NewProvider("openrouter", 0.83)
	engine, err := similarity.NewEngine([]ai.Provider{primary, secondary})
	require.NoError(t, err)
	s := newScanner(t, store, engine)

	res, err := s.SubmitScan(context.Background(), upload("spring weather and how much it rains"), "u1")
	require.NoError(t, err)

	m, err := store.GetMatch(context.Background(), res.DocumentID, "d1")
	require.NoError(t, err)
	require.NotNil(t, m.AIScore)
	assert.Equal(t, 0.83, *m.AIScore)
	assert.Equal(t, models.TierHigh, m.Tier)
	assert.Equal(t, models.MethodAI, m.Detail.Method)
	assert.Equal(t, "openrouter", m.Detail.Provider)
	assert.NotNil(t, m.TraditionalScore)
}

func TestSubmitScan_pairSymmetry(t *testing.T) {
	store := newStore(t)
	seedUser(t, store, "u1", 5)
	engine, err := similarity.NewEngine([]ai.Provider{mock.NewProvider("mistral", 0.72)})
	require.NoError(t, err)
	s := newScanner(t, store, engine)

	first, err := s.SubmitScan(context.Background(), upload("first document body"), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, first.MatchesFound)

	second, err := s.SubmitScan(context.Background(), upload("second document body"), "u1")
	require.NoError(t, err)
	require.Equal(t, 1, second.MatchesFound)

	forward, err := store.GetMatch(context.Background(), first.DocumentID, second.DocumentID)
	require.NoError(t, err)
	backward, err := store.GetMatch(context.Background(), second.DocumentID, first.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, forward.ID, backward.ID)
	assert.Equal(t, models.TierHigh, forward.Tier)
	assert.Equal(t, forward.Tier, backward.Tier)

	// A third scan matches both earlier documents; the existing pair is untouched.
	_, err = s.SubmitScan(context.Background(), upload("third document body"), "u1")
	require.NoError(t, err)
	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.Matches)
	again, err := store.GetMatch(context.Background(), second.DocumentID, first.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, forward.ID, again.ID)
	assert.True(t, again.CreatedAt.Equal(forward.CreatedAt))
}

func TestSubmitScan_identicalContentIsExact(t *testing.T) {
	store := newStore(t)
	seedUser(t, store, "u1", 1)
	seedDoc(t, store, "orig", "word for word copy")
	primary := mock.NewProvider("mistral", 0.1)
	engine, err := similarity.NewEngine([]ai.Provider{primary})
	require.NoError(t, err)
	s := newScanner(t, store, engine)

	res, err := s.SubmitScan(context.Background(), upload("word  for\nword copy"), "u1")
	require.NoError(t, err)
	require.Len(t, res.TopMatches, 1)
	assert.Equal(t, 1.0, res.TopMatches[0].Score)
	assert.Equal(t, models.TierExact, res.TopMatches[0].Tier)
	assert.Equal(t, 0, primary.CallCount())

	m, err := store.GetMatch(context.Background(), "orig", res.DocumentID)
	require.NoError(t, err)
	assert.True(t, m.Detail.ExactDuplicate)
	assert.Equal(t, models.MethodHash, m.Detail.Method)
}
