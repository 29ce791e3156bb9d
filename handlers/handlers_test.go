package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"discord-harvester/analyzer"
	"discord-harvester/bot"
	"discord-harvester/database"
	"discord-harvester/handlers"
	"discord-harvester/models"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func do(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var resp map[string]any
	Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
	return resp
}

var _ = Describe("Handlers", func() {
	var (
		router   *gin.Engine
		jobs     *mockJobQueue
		gw       *mockGateway
		analysis *mockAnalysis
		opened   int
	)

	BeforeEach(func() {
		jobs = &mockJobQueue{}
		gw = &mockGateway{
			guilds:   []bot.Guild{{ID: 1100, Name: "Guild"}},
			channels: map[int64][]bot.GuildChannel{1100: {{ID: 2200, Name: "general"}}},
		}
		analysis = &mockAnalysis{}
		opened = 0
		open := func(context.Context) (bot.Gateway, error) {
			opened++
			return gw, nil
		}
		router = handlers.NewRouter(handlers.New(jobs, open, analysis))
	})

	It("answers health checks", func() {
		w := do(router, http.MethodGet, "/health", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("X-Request-ID")).NotTo(BeEmpty())
	})

	It("exposes metrics", func() {
		w := do(router, http.MethodGet, "/metrics", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("harvest_messages_fetched_total"))
	})

	Describe("POST /discord/harvest", func() {
		It("queues a job", func() {
			var got models.HarvestJob
			jobs.submitFn = func(_ context.Context, job models.HarvestJob) (string, error) {
				got = job
				return "555", nil
			}
			w := do(router, http.MethodPost, "/discord/harvest", map[string]any{
				"discordId": "42", "serverId": 1100, "channels": []int64{2200, 2201}, "after": "2024-01-01",
			})
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)).To(Equal(map[string]any{"job_id": "555", "status": "queued"}))
			Expect(got.ServerID).To(Equal(int64(1100)))
			Expect(got.ChannelIDs).To(Equal([]int64{2200, 2201}))
			Expect(got.After).To(Equal("2024-01-01"))
		})

		It("rejects an empty channel list", func() {
			w := do(router, http.MethodPost, "/discord/harvest", map[string]any{
				"discordId": "42", "serverId": 1100, "channels": []int64{},
			})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(w)["code"]).To(Equal(handlers.ErrCodeBadRequest))
		})

		It("maps validation errors to 400", func() {
			jobs.submitFn = func(context.Context, models.HarvestJob) (string, error) {
				return "", database.ErrInvalidJob
			}
			w := do(router, http.MethodPost, "/discord/harvest", map[string]any{
				"discordId": "42", "serverId": 1100, "channels": []int64{2200},
			})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("maps store failures to 500", func() {
			jobs.submitFn = func(context.Context, models.HarvestJob) (string, error) {
				return "", &models.StoreError{Op: "submit job", Err: errors.New("locked")}
			}
			w := do(router, http.MethodPost, "/discord/harvest", map[string]any{
				"discordId": "42", "serverId": 1100, "channels": []int64{2200},
			})
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(decode(w)["code"]).To(Equal(handlers.ErrCodeInternal))
		})
	})

	Describe("job status", func() {
		It("returns the job state", func() {
			n := 3
			jobs.getFn = func(_ context.Context, id string) (*models.HarvestJob, error) {
				return &models.HarvestJob{ID: id, Status: models.JobDone, InsertedCount: &n}, nil
			}
			w := do(router, http.MethodGet, "/discord/harvest/status/9", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["status"]).To(Equal("done"))
			Expect(resp["inserted"]).To(BeNumerically("==", 3))
		})

		It("returns 404 for unknown jobs", func() {
			w := do(router, http.MethodGet, "/discord/harvest/status/9", nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("lists jobs with a status filter", func() {
			var gotStatus models.JobStatus
			var gotLimit int
			jobs.listFn = func(_ context.Context, status models.JobStatus, limit int) ([]models.HarvestJob, error) {
				gotStatus, gotLimit = status, limit
				return nil, nil
			}
			w := do(router, http.MethodGet, "/discord/harvest/jobs?status=failed&limit=5", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)["jobs"]).To(BeEmpty())
			Expect(gotStatus).To(Equal(models.JobFailed))
			Expect(gotLimit).To(Equal(5))
		})

		It("rejects unknown statuses and bad limits", func() {
			Expect(do(router, http.MethodGet, "/discord/harvest/jobs?status=lost", nil).Code).To(Equal(http.StatusBadRequest))
			Expect(do(router, http.MethodGet, "/discord/harvest/jobs?limit=-1", nil).Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("listing through a dedicated session", func() {
		It("lists servers and closes the session", func() {
			w := do(router, http.MethodGet, "/discord/servers", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(MatchJSON(`{"servers":[{"id":"1100","name":"Guild"}]}`))
			Expect(opened).To(Equal(1))
			Expect(gw.closed).To(Equal(1))
		})

		It("lists the channels of a server", func() {
			w := do(router, http.MethodGet, "/discord/channels/1100", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(MatchJSON(`{"server_id":"1100","server_name":"Guild","channels":[{"id":"2200","name":"general"}]}`))
		})

		It("returns 404 for a server the bot is not in", func() {
			w := do(router, http.MethodGet, "/discord/channels/999", nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(gw.closed).To(Equal(1))
		})

		It("returns 400 for a malformed id", func() {
			Expect(do(router, http.MethodGet, "/discord/channels/abc", nil).Code).To(Equal(http.StatusBadRequest))
			Expect(opened).To(BeZero())
		})

		It("maps connection failures to 502 and still closes", func() {
			gw.connectErr = &models.GatewayError{Op: "connect", Err: errors.New("invalid token")}
			w := do(router, http.MethodGet, "/discord/servers", nil)
			Expect(w.Code).To(Equal(http.StatusBadGateway))
			Expect(gw.closed).To(Equal(1))
		})
	})

	Describe("POST /discord/analyze", func() {
		body := map[string]any{
			"creator_id": 42, "serverId": 1100, "channelId": 2200,
			"model_name": "small", "prompt_key": "summary", "period": "last_week",
		}

		It("returns the outcome", func() {
			analysis.analyzeFn = func(_ context.Context, req analyzer.Request) (*analyzer.Outcome, error) {
				Expect(req.ChannelID).To(Equal(int64(2200)))
				return &analyzer.Outcome{ResultID: "1", Result: &models.AnalysisOutput{Model: "small", Content: "calm"}, Count: 4}, nil
			}
			w := do(router, http.MethodPost, "/discord/analyze", body)
			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["result_id"]).To(Equal("1"))
			Expect(resp["message_count"]).To(BeNumerically("==", 4))
		})

		It("maps LLM failures to 500 with a prefix", func() {
			analysis.analyzeFn = func(context.Context, analyzer.Request) (*analyzer.Outcome, error) {
				return nil, &models.AnalysisError{Model: "small", Prompt: "summary", Err: errors.New("timeout")}
			}
			w := do(router, http.MethodPost, "/discord/analyze", body)
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(decode(w)["message"]).To(HavePrefix("LLM error: "))
		})

		It("maps bad periods to 400", func() {
			analysis.analyzeFn = func(context.Context, analyzer.Request) (*analyzer.Outcome, error) {
				return nil, analyzer.ErrInvalidPeriod
			}
			Expect(do(router, http.MethodPost, "/discord/analyze", body).Code).To(Equal(http.StatusBadRequest))
		})

		It("answers 503 without an analysis service", func() {
			r := handlers.NewRouter(handlers.New(jobs, nil, nil))
			Expect(do(r, http.MethodPost, "/discord/analyze", body).Code).To(Equal(http.StatusServiceUnavailable))
		})
	})

	It("returns JSON for unknown routes and methods", func() {
		w := do(router, http.MethodGet, "/nope", nil)
		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(decode(w)["code"]).To(Equal(handlers.ErrCodeNotFound))

		w = do(router, http.MethodDelete, "/discord/harvest", nil)
		Expect(w.Code).To(Equal(http.StatusMethodNotAllowed))
	})
})
