package bot

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"time"

	"discord-harvester/models"

	"github.com/bwmarrin/discordgo"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubGateway struct {
	connectErr error
	closeErr   error
	closed     bool
}

func (s *stubGateway) Connect(context.Context) error               { return s.connectErr }
func (s *stubGateway) ListGuilds(context.Context) ([]Guild, error) { return nil, nil }
func (s *stubGateway) ListChannels(context.Context, int64) ([]GuildChannel, error) {
	return nil, nil
}
func (s *stubGateway) FetchHistory(context.Context, int64, int64, *int64) iter.Seq2[RawMessage, error] {
	return func(func(RawMessage, error) bool) {}
}
func (s *stubGateway) Close() error {
	s.closed = true
	return s.closeErr
}

var _ = Describe("New", func() {
	It("requires a token", func() {
		_, err := New(models.BotConfig{})
		Expect(err).To(MatchError("no bot token provided"))
	})

	It("asks for the intents needed to read history", func() {
		b, err := New(models.BotConfig{Token: "abc", PagesPerSecond: 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Session.Identify.Intents & discordgo.IntentMessageContent).NotTo(BeZero())
		Expect(float64(b.limiter.Limit())).To(Equal(2.0))
	})
})

var _ = Describe("Dial", func() {
	It("leaves a connected gateway open", func() {
		g := &stubGateway{}
		Expect(Dial(context.Background(), g)).To(Succeed())
		Expect(g.closed).To(BeFalse())
	})

	It("closes the gateway when the ready wait is cancelled", func() {
		g := &stubGateway{connectErr: context.Canceled}
		err := Dial(context.Background(), g)
		Expect(err).To(MatchError(context.Canceled))
		Expect(g.closed).To(BeTrue())
	})

	It("reports both errors when closing fails too", func() {
		g := &stubGateway{connectErr: errors.New("bad token"), closeErr: errors.New("close failed")}
		err := Dial(context.Background(), g)
		Expect(err).To(MatchError(ContainSubstring("bad token")))
		Expect(err).To(MatchError(ContainSubstring("close failed")))
	})
})

var _ = Describe("WithSession", func() {
	var g *stubGateway

	BeforeEach(func() {
		g = &stubGateway{}
	})

	open := func(context.Context) (Gateway, error) { return g, nil }

	It("runs fn on a connected gateway and closes it", func() {
		ran := false
		Expect(WithSession(context.Background(), open, func(Gateway) error {
			ran = true
			return nil
		})).To(Succeed())
		Expect(ran).To(BeTrue())
		Expect(g.closed).To(BeTrue())
	})

	It("closes after a failed connect without running fn", func() {
		g.connectErr = errors.New("bad token")
		err := WithSession(context.Background(), open, func(Gateway) error {
			Fail("fn must not run")
			return nil
		})
		Expect(err).To(MatchError("bad token"))
		Expect(g.closed).To(BeTrue())
	})

	It("prefers the fn error over the close error", func() {
		g.closeErr = errors.New("close failed")
		err := WithSession(context.Background(), open, func(Gateway) error { return errors.New("listing failed") })
		Expect(err).To(MatchError("listing failed"))

		err = WithSession(context.Background(), open, func(Gateway) error { return nil })
		Expect(err).To(MatchError("close failed"))
	})

	It("returns open failures", func() {
		err := WithSession(context.Background(), func(context.Context) (Gateway, error) {
			return nil, errors.New("no session")
		}, func(Gateway) error { return nil })
		Expect(err).To(MatchError("no session"))
	})
})

var _ = Describe("toRawMessage", func() {
	ts := time.Date(2024, 2, 3, 4, 5, 6, 0, time.FixedZone("CET", 3600))

	It("maps the discord message", func() {
		raw, err := toRawMessage(&discordgo.Message{
			ID:               "10",
			ChannelID:        "20",
			Content:          "hello",
			Timestamp:        ts,
			Author:           &discordgo.User{ID: "30", Username: "ada_l", GlobalName: "Ada"},
			Embeds:           []*discordgo.MessageEmbed{{}, {}},
			Attachments:      []*discordgo.MessageAttachment{{URL: "https://cdn.example/a.png"}},
			MessageReference: &discordgo.MessageReference{MessageID: "5"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(raw.ID).To(Equal(int64(10)))
		Expect(raw.ChannelID).To(Equal(int64(20)))
		Expect(raw.AuthorID).To(Equal(int64(30)))
		Expect(raw.AuthorName).To(Equal("Ada"))
		Expect(raw.EmbedCount).To(Equal(2))
		Expect(raw.AttachmentURLs).To(Equal([]string{"https://cdn.example/a.png"}))
		Expect(*raw.ParentMessageID).To(Equal(int64(5)))
		Expect(raw.CreatedAt).To(Equal(ts.UTC()))
	})

	It("prefers the guild nickname, then the username", func() {
		raw, err := toRawMessage(&discordgo.Message{
			ID: "1", ChannelID: "2",
			Author: &discordgo.User{ID: "3", Username: "ada_l", GlobalName: "Ada"},
			Member: &discordgo.Member{Nick: "Countess"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(raw.AuthorName).To(Equal("Countess"))

		raw, err = toRawMessage(&discordgo.Message{ID: "1", ChannelID: "2", Author: &discordgo.User{ID: "3", Username: "ada_l"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(raw.AuthorName).To(Equal("ada_l"))
		Expect(raw.ParentMessageID).To(BeNil())
	})

	It("rejects malformed ids", func() {
		_, err := toRawMessage(&discordgo.Message{ID: "x", ChannelID: "2"})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("classifyError", func() {
	rest := func(status int) error {
		return &discordgo.RESTError{Response: &http.Response{StatusCode: status}}
	}

	It("maps 403 to a permission error", func() {
		var perr *models.PermissionError
		Expect(classifyError("fetch history", 7, rest(http.StatusForbidden))).To(BeAssignableToTypeOf(perr))
	})

	It("maps 404 to a missing channel", func() {
		err := classifyError("fetch history", 7, rest(http.StatusNotFound))
		Expect(err).To(MatchError("channel 7 not found or not readable"))
	})

	It("wraps everything else as a gateway error", func() {
		var gerr *models.GatewayError
		Expect(classifyError("fetch history", 7, rest(http.StatusBadGateway))).To(BeAssignableToTypeOf(gerr))
		Expect(classifyError("fetch history", 7, errors.New("EOF"))).To(BeAssignableToTypeOf(gerr))
	})
})

var _ = Describe("isTextChannel", func() {
	It("accepts text and announcement channels only", func() {
		Expect(isTextChannel(&discordgo.Channel{Type: discordgo.ChannelTypeGuildText})).To(BeTrue())
		Expect(isTextChannel(&discordgo.Channel{Type: discordgo.ChannelTypeGuildNews})).To(BeTrue())
		Expect(isTextChannel(&discordgo.Channel{Type: discordgo.ChannelTypeGuildVoice})).To(BeFalse())
		Expect(isTextChannel(&discordgo.Channel{Type: discordgo.ChannelTypeGuildForum})).To(BeFalse())
	})
})
