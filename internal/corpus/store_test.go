package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/kafka"
)

func ts(t *testing.T, s string) *time.Time {
	t.Helper()
	v, err := ParseTimestamp(s)
	require.NoError(t, err)
	return &v
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	known, err := Load(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, known)
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	content := `{"url":"https://a.example/1","text":"one"}
not json at all
{"url":"","text":"no url"}

{"url":"https://a.example/2","text":"two","timestamp":null}
{"url":"https://a.example/3","text":"three","timestamp":"2025-02-01T10:00:00"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	known, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, known, 3)
	assert.True(t, known.Has("https://a.example/1"))
	assert.True(t, known.Has("https://a.example/3"))

	records, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Nil(t, records[1].Timestamp)
	require.NotNil(t, records[2].Timestamp)
	assert.Equal(t, time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC), records[2].Timestamp.UTC())
}

func TestAppendNewIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "corpus.jsonl")
	records := []Record{
		{URL: "https://a.example/t/1/10", Text: "first", Timestamp: ts(t, "2025-01-10T00:00:00Z")},
		{URL: "https://a.example/t/1/11", Text: "second"},
		{URL: "https://a.example/t/1/10", Text: "repeat in batch"},
	}

	known, err := Load(path)
	require.NoError(t, err)
	written, err := AppendNew(path, records, known)
	require.NoError(t, err)
	assert.Len(t, written, 2)
	assert.True(t, known.Has("https://a.example/t/1/11"), "written URLs join the caller's set")

	known, err = Load(path)
	require.NoError(t, err)
	written, err = AppendNew(path, records, known)
	require.NoError(t, err)
	assert.Empty(t, written)

	all, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "first", all[0].Text)
	assert.Equal(t, "second", all[1].Text)
}

func TestAppendNewRoundTripsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	in := []Record{
		{URL: "https://a.example/t/1/10", Text: "Use <b>uv</b> & pip", Timestamp: ts(t, "2025-03-01T12:30:00Z")},
		{URL: "https://docs.example/#/2025-01/", Text: "fallback", Links: []string{"https://docs.example/x"}},
		{URL: "https://a.example/t/ref/5", Text: "exempt", Exempt: true},
	}
	_, err := AppendNew(path, in, make(URLSet))
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<b>uv</b> & pip")

	out, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i := range in {
		assert.Equal(t, in[i].URL, out[i].URL)
		assert.Equal(t, in[i].Text, out[i].Text)
		assert.Equal(t, in[i].Links, out[i].Links)
		assert.Equal(t, in[i].Exempt, out[i].Exempt)
		if in[i].Timestamp == nil {
			assert.Nil(t, out[i].Timestamp)
		} else {
			assert.True(t, in[i].Timestamp.Equal(*out[i].Timestamp))
		}
	}
}

func TestAppendNewRecoversFromTornLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"url":"https://a.example/1","text":"ok"}`+"\n"+`{"url":"https://a.exa`), 0o644))

	known, err := Load(path)
	require.NoError(t, err)
	_, err = AppendNew(path, []Record{{URL: "https://a.example/2", Text: "new"}}, known)
	require.NoError(t, err)

	all, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "https://a.example/2", all[1].URL)
}

func TestFilteredRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filtered.jsonl")
	entries := []FilteredURL{
		{URL: "https://d.example/t/a/1", Date: time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)},
		{URL: "https://d.example/t/tds-references-guidelines/67216/5", Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Exempt: true},
	}
	require.NoError(t, AppendFiltered(path, entries))

	got, err := LoadFiltered(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, entries[0].Date.Equal(got[0].Date))
	assert.True(t, got[1].Exempt)
	assert.False(t, got[0].Exempt)
}

func TestMarshalKeepsHTMLCharacters(t *testing.T) {
	data, err := Record{URL: "https://a.example/t/1?x=1&y=2", Text: "a <b>bold</b> & plain"}.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"url":"https://a.example/t/1?x=1&y=2","text":"a <b>bold</b> & plain"}`, string(data))

	path := filepath.Join(t.TempDir(), "filtered.jsonl")
	entry := FilteredURL{URL: "https://d.example/latest?page=1&order=activity", Date: time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, AppendFiltered(path, []FilteredURL{entry}))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "page=1&order=activity")
	assert.NotContains(t, string(raw), `\u0026`)
}

type recordingPublisher struct {
	batches [][]kafka.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event kafka.Event) error {
	return p.PublishBatch(ctx, []kafka.Event{event})
}

func (p *recordingPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.batches = append(p.batches, events)
	return nil
}

func TestEventBatcherFlushesOnCancel(t *testing.T) {
	pub := &recordingPublisher{}
	b := NewEventBatcher(pub, 50, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	b.Start(ctx)

	b.Track([]Record{{URL: "https://a.example/1", Text: "abc"}, {URL: "https://a.example/2", Text: "de"}})
	assert.Equal(t, 2, b.BufferLen())

	cancel()
	b.Close()

	require.Len(t, pub.batches, 1)
	require.Len(t, pub.batches[0], 2)
	assert.Equal(t, "https://a.example/1", pub.batches[0][0].Key)
	ev := pub.batches[0][1].Value.(RecordEvent)
	assert.Equal(t, 2, ev.TextLength)
}
