package analyzer

import (
	"context"
	"errors"
	"time"

	"discord-harvester/models"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeStore struct {
	messages []models.Message
	filter   models.MessageFilter
	results  []models.AnalysisResult
	findErr  error
}

func (f *fakeStore) FindMessages(_ context.Context, filter models.MessageFilter) ([]models.Message, error) {
	f.filter = filter
	return f.messages, f.findErr
}

func (f *fakeStore) InsertAnalysis(_ context.Context, r models.AnalysisResult) (string, error) {
	f.results = append(f.results, r)
	return "77", nil
}

type fakeAnalyzer struct {
	calls  int
	lines  []string
	output *models.AnalysisOutput
	err    error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _, _ string, messages []string) (*models.AnalysisOutput, error) {
	f.calls++
	f.lines = messages
	return f.output, f.err
}

var _ = Describe("Window", func() {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

	DescribeTable("spans the named period up to now",
		func(period string, from time.Time) {
			w, err := Window(period, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(w.From).To(Equal(from))
			Expect(w.To).To(Equal(now))
		},
		Entry("day", PeriodLastDay, time.Date(2024, 3, 30, 12, 0, 0, 0, time.UTC)),
		Entry("week", PeriodLastWeek, time.Date(2024, 3, 24, 12, 0, 0, 0, time.UTC)),
		Entry("month", PeriodLastMonth, time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)),
	)

	It("rejects unknown periods", func() {
		_, err := Window("last_year", now)
		Expect(err).To(MatchError(ErrInvalidPeriod))
	})
})

var _ = Describe("Format", func() {
	It("renders one line per message with a name fallback", func() {
		at := time.Date(2024, 1, 2, 15, 4, 59, 0, time.UTC)
		lines := Format([]models.Message{
			{AuthorName: "ada", AuthorUserID: 1, Content: "hello", CreatedAt: at},
			{AuthorUserID: 2, Content: "hi", CreatedAt: at.Add(time.Minute)},
		})
		Expect(lines).To(Equal([]string{
			"[2024-01-02 15:04] ada: hello",
			"[2024-01-02 15:05] 2: hi",
		}))
	})
})

var _ = Describe("Service", func() {
	var (
		ctx   context.Context
		store *fakeStore
		llm   *fakeAnalyzer
		svc   *Service
		now   time.Time
		req   Request
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
		store = &fakeStore{}
		llm = &fakeAnalyzer{output: &models.AnalysisOutput{Model: "small", Content: "calm"}}
		svc = NewService(store, llm)
		svc.now = func() time.Time { return now }
		req = Request{CreatorID: 42, ServerID: 1, ChannelID: 10, ModelName: "small", PromptKey: "summary", Period: PeriodLastDay}
	})

	It("skips the LLM when the period is empty", func() {
		out, err := svc.Analyze(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Result).To(BeNil())
		Expect(out.Message).To(Equal("No messages found for this period."))
		Expect(llm.calls).To(BeZero())
		Expect(store.results).To(BeEmpty())
	})

	It("queries the channel window and stores an audit record", func() {
		store.messages = []models.Message{{AuthorName: "ada", Content: "hello", CreatedAt: now.Add(-time.Hour)}}

		out, err := svc.Analyze(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.ResultID).To(Equal("77"))
		Expect(out.Count).To(Equal(1))
		Expect(out.Result.Content).To(Equal("calm"))

		Expect(store.filter).To(Equal(models.MessageFilter{ChannelID: 10, From: now.AddDate(0, 0, -1), To: now}))
		Expect(llm.lines).To(Equal([]string{"[2024-03-31 11:00] ada: hello"}))

		Expect(store.results).To(HaveLen(1))
		rec := store.results[0]
		Expect(rec.CreatorID).To(Equal(int64(42)))
		Expect(rec.Platform).To(Equal(models.PlatformDiscord))
		Expect(rec.Scope).To(Equal(models.AnalysisScope{ServerID: 1, ChannelID: 10}))
		Expect(rec.Period.To).To(Equal(now))
		Expect(rec.CreatedAt).To(Equal(now))
	})

	It("stores nothing when the LLM fails", func() {
		store.messages = []models.Message{{Content: "x", CreatedAt: now}}
		llm.err = &models.AnalysisError{Model: "small", Prompt: "summary", Err: errors.New("timeout")}

		_, err := svc.Analyze(ctx, req)
		var aerr *models.AnalysisError
		Expect(errors.As(err, &aerr)).To(BeTrue())
		Expect(store.results).To(BeEmpty())
	})

	It("rejects bad periods before reading the store", func() {
		req.Period = "fortnight"
		_, err := svc.Analyze(ctx, req)
		Expect(err).To(MatchError(ErrInvalidPeriod))
		Expect(store.filter).To(BeZero())
	})

	It("wraps store failures", func() {
		store.findErr = errors.New("closed")
		_, err := svc.Analyze(ctx, req)
		Expect(err).To(MatchError(ContainSubstring("failed to load messages: closed")))
	})
})
