package integration

import (
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tradelens/ingestor/internal/sink"
	"github.com/tradelens/ingestor/internal/sources"
	"github.com/tradelens/ingestor/test-integration/ingestor-api/helpers"
)

var _ = Describe("Ingestor Server", Label("server"), func() {
	var (
		tempDir      string
		upstream     *helpers.FakeUpstream
		testConfig   helpers.TestConfig
		serverHelper *helpers.ServerTestHelper
		firstRun     helpers.RunResponse
	)

	BeforeEach(func() {
		tempDir = createTempDir("ingestor-test-")
		upstream = helpers.NewFakeUpstream(map[string][]uint64{
			"100": {1001, 1002, 1003, 1004, 1005},
			"200": {2001, 2002},
		})
		testConfig = helpers.WriteConfigYAML(tempDir, upstream.URL(), "")

		var err error
		serverHelper, err = helpers.NewServerTestHelper(ctx, testConfig.Path)
		Expect(err).NotTo(HaveOccurred())
		Expect(serverHelper.StartServer()).To(Succeed())

		serverHelper.WaitForServerReady(10 * time.Second)
		summary := serverHelper.WaitForScheduledRun(30 * time.Second)
		Expect(summary.ExitCode).To(Equal(0))
		firstRun = serverHelper.GetLastRun()
	})

	AfterEach(func() {
		Expect(serverHelper.StopServer()).To(Succeed())
		upstream.Close()
		cleanupTempDir(tempDir)
	})

	Context("Scheduled run on start", func() {
		It("should run every task in configuration order", func() {
			Expect(firstRun.Outcome).To(Equal("success"))
			Expect(firstRun.Results).To(HaveLen(3))

			tasks := []string{firstRun.Results[0].Task, firstRun.Results[1].Task, firstRun.Results[2].Task}
			Expect(tasks).To(Equal([]string{"snaptrade", "discord", "ohlcv"}))
		})

		It("should record the status of every task", func() {
			status := serverHelper.GetStatus()
			Expect(status.Tasks).To(HaveLen(3))
			for name, st := range status.Tasks {
				Expect(st.Success).To(BeTrue(), name)
				Expect(st.LastSuccess).NotTo(BeNil(), name)
				Expect(st.ConsecutiveFailures).To(BeZero(), name)
			}
			Expect(testConfig.StatusPath).To(BeAnExistingFile())
		})

		It("should write the fetched records to the sink", func() {
			out := sink.NewFileSink(testConfig.SinkDir)

			messages, err := out.Records(sources.DiscordDataset)
			Expect(err).NotTo(HaveOccurred())
			Expect(messages).To(HaveLen(7))

			activities, err := out.Records(sources.SnapTradeDataset)
			Expect(err).NotTo(HaveOccurred())
			Expect(activities).To(HaveKey("act-1"))

			bars, err := out.Records(sources.OHLCVDataset)
			Expect(err).NotTo(HaveOccurred())
			Expect(bars).To(HaveKey("AAPL:2024-03-01"))
			Expect(bars).To(HaveKey("MSFT:2024-03-01"))
			Expect(upstream.BarDates()).To(ConsistOf("2024-03-01", "2024-03-01"))
		})
	})

	Context("Triggered runs", func() {
		It("should continue Discord from the stored cursor", func() {
			upstream.PostMessages("100", 1006, 1007)

			code, run := serverHelper.TriggerRun([]string{"discord"}, false)
			Expect(code).To(Equal(http.StatusOK))
			Expect(run.Results).To(HaveLen(1))
			Expect(run.Results[0].Outcome).To(Equal("success"))
			Expect(run.Results[0].Items).To(HaveValue(BeEquivalentTo(2)))

			messages, err := sink.NewFileSink(testConfig.SinkDir).Records(sources.DiscordDataset)
			Expect(err).NotTo(HaveOccurred())
			Expect(messages).To(HaveLen(9))
		})

		It("should keep the last success when a task fails and clear the failure on recovery", func() {
			before := serverHelper.GetStatus().Tasks["snaptrade"]

			upstream.SetFailing(true)
			code, run := serverHelper.TriggerRun([]string{"snaptrade"}, false)
			Expect(code).To(Equal(http.StatusOK))
			Expect(run.ExitCode).To(Equal(1))
			Expect(run.Results[0].Outcome).To(Equal("failure"))
			Expect(run.Results[0].Attempts).To(Equal(2))
			Expect(run.Results[0].Detail).To(ContainSubstring("503"))

			failed := serverHelper.GetStatus().Tasks["snaptrade"]
			Expect(failed.Success).To(BeFalse())
			Expect(failed.ConsecutiveFailures).To(Equal(1))
			Expect(failed.LastError).NotTo(BeEmpty())
			Expect(failed.LastSuccess).NotTo(BeNil())
			Expect(failed.LastSuccess.Equal(*before.LastSuccess)).To(BeTrue())

			upstream.SetFailing(false)
			code, run = serverHelper.TriggerRun([]string{"snaptrade"}, false)
			Expect(code).To(Equal(http.StatusOK))
			Expect(run.ExitCode).To(Equal(0))

			recovered := serverHelper.GetStatus().Tasks["snaptrade"]
			Expect(recovered.Success).To(BeTrue())
			Expect(recovered.ConsecutiveFailures).To(BeZero())
			Expect(recovered.LastError).To(BeEmpty())
			Expect(recovered.LastSuccess.After(*before.LastSuccess)).To(BeTrue())
		})

		It("should not contact sources or change the last run on a dry run", func() {
			requests := upstream.Requests()

			code, run := serverHelper.TriggerRun(nil, true)
			Expect(code).To(Equal(http.StatusOK))
			Expect(run.DryRun).To(BeTrue())
			Expect(run.Results).To(HaveLen(3))
			for _, r := range run.Results {
				Expect(r.WouldRun).To(BeTrue(), r.Task)
			}

			Expect(upstream.Requests()).To(Equal(requests))
			Expect(serverHelper.GetLastRun().RunID).To(Equal(firstRun.RunID))
		})

		It("should reject unknown tasks without running anything", func() {
			requests := upstream.Requests()

			code, _ := serverHelper.TriggerRun([]string{"ohlcv", "rss"}, false)
			Expect(code).To(Equal(http.StatusBadRequest))
			Expect(upstream.Requests()).To(Equal(requests))
		})
	})

	Context("Health endpoints", func() {
		It("should serve health, version and per task status", func() {
			Expect(serverHelper.Get("/health")).To(Equal(http.StatusOK))
			Expect(serverHelper.Get("/version")).To(Equal(http.StatusOK))
			Expect(serverHelper.Get("/v1/status/ohlcv")).To(Equal(http.StatusOK))
			Expect(serverHelper.Get("/v1/status/unknown")).To(Equal(http.StatusNotFound))
		})
	})
})
