package sqlitedb_test

import (
	"context"
	"path/filepath"
	"time"

	"discord-harvester/database/sqlitedb"
	"discord-harvester/models"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("message store", func() {
	var (
		ctx context.Context
		db  *sqlitedb.DB
		at  func(day int) time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		db, err = sqlitedb.Open(ctx, filepath.Join(GinkgoT().TempDir(), "messages.db"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { Expect(db.Close(ctx)).To(Succeed()) })
		at = func(day int) time.Time { return time.Date(2024, 3, day, 9, 0, 0, 0, time.UTC) }
	})

	msg := func(id, channel int64, created time.Time) models.Message {
		return models.Message{ID: id, ChannelID: channel, AuthorUserID: 7, AuthorName: "ada", Content: "hi", CreatedAt: created, FetchedAt: created}
	}

	It("counts only newly written rows", func() {
		n, err := db.InsertMessages(ctx, []models.Message{msg(1, 10, at(1)), msg(2, 10, at(2))})
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))

		n, err = db.InsertMessages(ctx, []models.Message{msg(2, 10, at(2)), msg(3, 10, at(3))})
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
	})

	It("finds existing ids across chunk boundaries", func() {
		batch := make([]models.Message, 0, 1200)
		probe := make([]int64, 0, 1300)
		for i := int64(1); i <= 1200; i++ {
			batch = append(batch, msg(i, 10, at(1)))
			probe = append(probe, i)
		}
		for i := int64(5000); i < 5100; i++ {
			probe = append(probe, i)
		}
		_, err := db.InsertMessages(ctx, batch)
		Expect(err).NotTo(HaveOccurred())

		found, err := db.ExistingMessageIDs(ctx, probe)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(1200))
		Expect(found).To(HaveKey(int64(1200)))
		Expect(found).NotTo(HaveKey(int64(5000)))
	})

	It("tracks the highest stored id per channel", func() {
		last, err := db.LastMessageID(ctx, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(last).To(BeNil())

		_, err = db.InsertMessages(ctx, []models.Message{msg(5, 10, at(1)), msg(9, 10, at(2)), msg(50, 20, at(3))})
		Expect(err).NotTo(HaveOccurred())

		last, err = db.LastMessageID(ctx, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(*last).To(Equal(int64(9)))
	})

	It("returns a channel window oldest first with parents preserved", func() {
		parent := int64(1)
		reply := msg(4, 10, at(2))
		reply.ParentMessageID = &parent
		_, err := db.InsertMessages(ctx, []models.Message{msg(3, 10, at(3)), msg(1, 10, at(1)), reply, msg(8, 20, at(2))})
		Expect(err).NotTo(HaveOccurred())

		found, err := db.FindMessages(ctx, models.MessageFilter{ChannelID: 10, From: at(2), To: at(3)})
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(2))
		Expect(found[0].ID).To(Equal(int64(4)))
		Expect(*found[0].ParentMessageID).To(Equal(int64(1)))
		Expect(found[0].CreatedAt).To(Equal(at(2)))
		Expect(found[1].ID).To(Equal(int64(3)))
		Expect(found[1].ParentMessageID).To(BeNil())
	})

	It("prunes by fetch time", func() {
		_, err := db.InsertMessages(ctx, []models.Message{msg(1, 10, at(1)), msg(2, 10, at(5))})
		Expect(err).NotTo(HaveOccurred())

		n, err := db.PruneFetchedBefore(ctx, at(3))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))

		left, err := db.FindMessages(ctx, models.MessageFilter{ChannelID: 10})
		Expect(err).NotTo(HaveOccurred())
		Expect(left).To(HaveLen(1))
		Expect(left[0].ID).To(Equal(int64(2)))
	})
})

var _ = Describe("registry and analyses", func() {
	var (
		ctx context.Context
		db  *sqlitedb.DB
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		db, err = sqlitedb.Open(ctx, filepath.Join(GinkgoT().TempDir(), "registry.db"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { Expect(db.Close(ctx)).To(Succeed()) })
	})

	It("keeps the first record of a server or channel", func() {
		Expect(db.EnsureServer(ctx, models.Server{ID: 1, Name: "First", RequesterID: "42"})).To(Succeed())
		Expect(db.EnsureServer(ctx, models.Server{ID: 1, Name: "Renamed", RequesterID: "43"})).To(Succeed())
		Expect(db.EnsureChannel(ctx, models.Channel{ID: 10, ServerID: 1, Name: "general"})).To(Succeed())
		Expect(db.EnsureChannel(ctx, models.Channel{ID: 10, ServerID: 1, Name: "renamed"})).To(Succeed())
		Expect(db.EnsureChannel(ctx, models.Channel{ID: 20, ServerID: 2, Name: "elsewhere"})).To(Succeed())

		servers, err := db.ListServers(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(servers).To(Equal([]models.Server{{ID: 1, Name: "First", RequesterID: "42"}}))

		channels, err := db.ListChannels(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(channels).To(Equal([]models.Channel{{ID: 10, ServerID: 1, Name: "general"}}))
	})

	It("appends analysis results with fresh ids", func() {
		r := models.AnalysisResult{
			CreatorID: 42,
			Platform:  models.PlatformDiscord,
			PromptKey: "summary",
			ModelName: "small",
			Scope:     models.AnalysisScope{ServerID: 1, ChannelID: 10},
			Period:    models.AnalysisPeriod{From: time.Now().Add(-time.Hour), To: time.Now()},
			Result:    &models.AnalysisOutput{Model: "small", Content: "quiet day"},
			CreatedAt: time.Now(),
		}
		first, err := db.InsertAnalysis(ctx, r)
		Expect(err).NotTo(HaveOccurred())
		second, err := db.InsertAnalysis(ctx, r)
		Expect(err).NotTo(HaveOccurred())
		Expect(first).NotTo(BeEmpty())
		Expect(second).NotTo(Equal(first))
	})
})
