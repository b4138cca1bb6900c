package processor

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/internal/checkpoint"
	"jobscout/internal/config"
	"jobscout/internal/metrics"
	"jobscout/internal/models"
	"jobscout/internal/sink"
)

// promauto registers against the default registry, so share one instance
// across the package's tests
var testMetrics = metrics.NewMetrics()

type fakeMailbox struct {
	ids        []string
	messages   map[string]models.EmailMessage
	searchErr  error
	fetchErrs  map[string]error
	fetchCalls int
	reconnects int
	closed     bool
}

func (f *fakeMailbox) Connect() error { return nil }

func (f *fakeMailbox) Search(subjectToken string, since time.Time) ([]string, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.ids, nil
}

func (f *fakeMailbox) Fetch(id string) (models.EmailMessage, error) {
	f.fetchCalls++
	if err, ok := f.fetchErrs[id]; ok {
		return models.EmailMessage{}, err
	}
	msg, ok := f.messages[id]
	if !ok {
		return models.EmailMessage{}, fmt.Errorf("no such message %s", id)
	}
	return msg, nil
}

func (f *fakeMailbox) Reconnect() error { f.reconnects++; return nil }
func (f *fakeMailbox) Close() error     { f.closed = true; return nil }

type fakeExtractor struct {
	jobs   []models.JobRecord
	inputs []string
}

func (f *fakeExtractor) Extract(ctx context.Context, text string) ([]models.JobRecord, error) {
	f.inputs = append(f.inputs, text)
	return f.jobs, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Search: config.SearchConfig{
			SubjectToken: "jobs digest",
			LookbackDays: 45,
		},
		Pipeline: config.PipelineConfig{
			InterItemSleep:   10 * time.Second,
			ReconnectEvery:   25,
			FetchRetries:     2,
			FetchRetryDelay:  2 * time.Second,
			MinContentLength: 100,
		},
	}
}

type fixture struct {
	proc       *Processor
	mb         *fakeMailbox
	ex         *fakeExtractor
	cfg        *config.Config
	checkpoint string
	results    string
	sleeps     []time.Duration
}

func newFixture(t *testing.T, mb *fakeMailbox, ex *fakeExtractor) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := testConfig()
	fx := &fixture{
		mb:         mb,
		ex:         ex,
		cfg:        cfg,
		checkpoint: filepath.Join(dir, "processed.txt"),
		results:    filepath.Join(dir, "jobs.csv"),
	}
	fx.rebuild()
	return fx
}

// rebuild recreates the processor against the same files, simulating a
// fresh run of the program
func (fx *fixture) rebuild() {
	fx.proc = New(fx.cfg, fx.mb, fx.ex,
		checkpoint.New(fx.checkpoint), sink.NewCSVSink(fx.results), nil, testMetrics)
	fx.proc.sleep = func(d time.Duration) { fx.sleeps = append(fx.sleeps, d) }
}

func (fx *fixture) checkpointedIDs(t *testing.T) map[string]struct{} {
	t.Helper()
	ids, err := checkpoint.New(fx.checkpoint).Load()
	require.NoError(t, err)
	return ids
}

func (fx *fixture) resultRows(t *testing.T) [][]string {
	t.Helper()
	f, err := os.Open(fx.results)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func longBody(seed string) string {
	return seed + " " + strings.Repeat("details ", 20)
}

func TestRunHappyPath(t *testing.T) {
	mb := &fakeMailbox{
		ids: []string{"100"},
		messages: map[string]models.EmailMessage{
			"100": {
				ID:      "100",
				Subject: "jobs digest",
				Date:    "Mon, 01 Sep 2026 10:00:00 +0530",
				Body:    longBody("Senior Software Engineer at Acme, 25 LPA, Bangalore, apply at acme.co/apply"),
			},
		},
	}
	ex := &fakeExtractor{jobs: []models.JobRecord{
		{Role: "Senior Software Engineer", Company: "Acme", Salary: "25 LPA"},
	}}
	fx := newFixture(t, mb, ex)

	require.NoError(t, fx.proc.Run(context.Background()))

	rows := fx.resultRows(t)
	require.Len(t, rows, 2)
	assert.Equal(t, "Senior Software Engineer", rows[1][0])
	assert.Equal(t, "Acme", rows[1][1])
	assert.Equal(t, "25 LPA", rows[1][2])
	assert.Equal(t, "Mon, 01 Sep 2026 10:00:00 +0530", rows[1][7])
	assert.Equal(t, "jobs digest", rows[1][8])

	assert.Contains(t, fx.checkpointedIDs(t), "100")
}

func TestRunShortBodySkipsExtraction(t *testing.T) {
	mb := &fakeMailbox{
		ids: []string{"101"},
		messages: map[string]models.EmailMessage{
			"101": {ID: "101", Subject: "jobs digest", Body: "too short to bother with"},
		},
	}
	ex := &fakeExtractor{}
	fx := newFixture(t, mb, ex)

	require.NoError(t, fx.proc.Run(context.Background()))

	assert.Empty(t, ex.inputs, "extraction must not be invoked for short bodies")
	assert.NoFileExists(t, fx.results)
	assert.Contains(t, fx.checkpointedIDs(t), "101")
}

func TestRunNormalizesBodyBeforeExtraction(t *testing.T) {
	raw := "<html><body>Senior   Engineer\n\nat Acme " + strings.Repeat("<b>more</b> details ", 15) + "</body></html>"
	mb := &fakeMailbox{
		ids:      []string{"100"},
		messages: map[string]models.EmailMessage{"100": {ID: "100", Body: raw}},
	}
	ex := &fakeExtractor{}
	fx := newFixture(t, mb, ex)

	require.NoError(t, fx.proc.Run(context.Background()))

	require.Len(t, ex.inputs, 1)
	assert.NotContains(t, ex.inputs[0], "<")
	assert.NotContains(t, ex.inputs[0], "\n")
	assert.Contains(t, ex.inputs[0], "Senior Engineer at Acme")
}

func TestRunEmptyJobsStillCheckpoints(t *testing.T) {
	mb := &fakeMailbox{
		ids:      []string{"100"},
		messages: map[string]models.EmailMessage{"100": {ID: "100", Body: longBody("newsletter")}},
	}
	ex := &fakeExtractor{jobs: nil}
	fx := newFixture(t, mb, ex)

	require.NoError(t, fx.proc.Run(context.Background()))

	assert.Len(t, ex.inputs, 1)
	assert.NoFileExists(t, fx.results)
	assert.Contains(t, fx.checkpointedIDs(t), "100")
}

func TestRunIdempotentResumption(t *testing.T) {
	mb := &fakeMailbox{
		ids:      []string{"100", "101"},
		messages: map[string]models.EmailMessage{
			"100": {ID: "100", Subject: "s", Date: "d", Body: longBody("first")},
			"101": {ID: "101", Subject: "s", Date: "d", Body: longBody("second")},
		},
	}
	ex := &fakeExtractor{jobs: []models.JobRecord{{Role: "SDE"}}}
	fx := newFixture(t, mb, ex)

	require.NoError(t, fx.proc.Run(context.Background()))
	firstRows := fx.resultRows(t)
	firstCheckpoints, err := os.ReadFile(fx.checkpoint)
	require.NoError(t, err)
	firstExtractions := len(ex.inputs)

	// Same mailbox contents, fresh process
	fx.rebuild()
	require.NoError(t, fx.proc.Run(context.Background()))

	assert.Equal(t, firstExtractions, len(ex.inputs), "second run must process zero items")
	assert.Equal(t, firstRows, fx.resultRows(t))
	secondCheckpoints, err := os.ReadFile(fx.checkpoint)
	require.NoError(t, err)
	assert.Equal(t, firstCheckpoints, secondCheckpoints)
}

func TestRunFetchFailureLeavesItemUncheckpointed(t *testing.T) {
	mb := &fakeMailbox{
		ids:       []string{"100", "101"},
		messages:  map[string]models.EmailMessage{"101": {ID: "101", Body: longBody("fine")}},
		fetchErrs: map[string]error{"100": errors.New("broken pipe")},
	}
	ex := &fakeExtractor{}
	fx := newFixture(t, mb, ex)

	require.NoError(t, fx.proc.Run(context.Background()), "a failing item must not fail the run")

	ids := fx.checkpointedIDs(t)
	assert.NotContains(t, ids, "100", "failed item stays eligible for the next run")
	assert.Contains(t, ids, "101")
	// Bounded fetch retry: 2 attempts for the broken item, 1 for the good one
	assert.Equal(t, 3, mb.fetchCalls)
}

func TestRunSearchFailureIsFatal(t *testing.T) {
	mb := &fakeMailbox{searchErr: errors.New("connection reset")}
	fx := newFixture(t, mb, &fakeExtractor{})

	err := fx.proc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mailbox search failed")
}

func TestRunReconnectCadence(t *testing.T) {
	messages := make(map[string]models.EmailMessage)
	var ids []string
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("10%d", i)
		ids = append(ids, id)
		messages[id] = models.EmailMessage{ID: id, Body: "short"}
	}
	mb := &fakeMailbox{ids: ids, messages: messages}
	fx := newFixture(t, mb, &fakeExtractor{})
	fx.cfg.Pipeline.ReconnectEvery = 2

	require.NoError(t, fx.proc.Run(context.Background()))

	// After items 2 and 4, but not after the final item
	assert.Equal(t, 2, mb.reconnects)
}

func TestRunPacesBetweenItems(t *testing.T) {
	mb := &fakeMailbox{
		ids: []string{"100", "101"},
		messages: map[string]models.EmailMessage{
			"100": {ID: "100", Body: "short"},
			"101": {ID: "101", Body: "short"},
		},
	}
	fx := newFixture(t, mb, &fakeExtractor{})

	require.NoError(t, fx.proc.Run(context.Background()))

	var interItem int
	for _, d := range fx.sleeps {
		if d == fx.cfg.Pipeline.InterItemSleep {
			interItem++
		}
	}
	assert.Equal(t, 2, interItem)
}

func TestRunCancelledContextStopsBatch(t *testing.T) {
	mb := &fakeMailbox{
		ids:      []string{"100"},
		messages: map[string]models.EmailMessage{"100": {ID: "100", Body: "short"}},
	}
	fx := newFixture(t, mb, &fakeExtractor{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := fx.proc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fx.checkpointedIDs(t))
}
