package command_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"discord-harvester/command"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("CLI", func() {
	var dir string

	run := func(args ...string) (string, error) {
		var out, errOut bytes.Buffer
		cmd := command.NewRootCmd("test")
		cmd.SetOut(&out)
		cmd.SetErr(&errOut)
		cmd.SetArgs(append([]string{"--config-dir", dir}, args...))
		err := cmd.Execute()
		return out.String(), err
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		cfg := "storage:\n  driver: sqlite\n  sqlite_path: " + filepath.Join(dir, "data", "cli.db") + "\nlog:\n  level: error\n"
		Expect(os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0o644)).To(Succeed())
	})

	It("lists every subcommand", func() {
		root := command.NewRootCmd("test")
		var names []string
		for _, c := range root.Commands() {
			names = append(names, c.Name())
		}
		Expect(names).To(ContainElements("daemon", "api", "servers", "channels", "submit", "status", "jobs", "analyze", "models", "health"))
	})

	It("submits a job and reads it back", func() {
		out, err := run("submit", "--server", "1100", "--channel", "2200", "--channel", "2201", "--after", "2024-01-01", "--json")
		Expect(err).NotTo(HaveOccurred())
		var submitted map[string]string
		Expect(json.Unmarshal([]byte(out), &submitted)).To(Succeed())
		Expect(submitted["status"]).To(Equal("pending"))
		id := submitted["job_id"]
		Expect(id).NotTo(BeEmpty())

		out, err = run("status", id, "--json")
		Expect(err).NotTo(HaveOccurred())
		var job map[string]any
		Expect(json.Unmarshal([]byte(out), &job)).To(Succeed())
		Expect(job["discordId"]).To(Equal("cli"))
		Expect(job["channels"]).To(HaveLen(2))
		Expect(job["after"]).To(Equal("2024-01-01"))

		out, err = run("jobs", "--status", "pending")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring(id))
		Expect(out).To(ContainSubstring("2 channel(s)"))
	})

	It("rejects malformed ids and statuses", func() {
		_, err := run("submit", "--server", "abc", "--channel", "1")
		Expect(err).To(MatchError(ContainSubstring("error parsing server ID abc")))

		_, err = run("jobs", "--status", "lost")
		Expect(err).To(MatchError(ContainSubstring(`unknown status "lost"`)))
	})

	It("reports unknown jobs", func() {
		_, err := run("status", "12345")
		Expect(err).To(MatchError("job 12345 not found"))
	})

	It("needs a token for discord commands", func() {
		os.Unsetenv("BOT_TOKEN")
		os.Unsetenv("DISCORD_BOT_TOKEN")
		_, err := run("servers")
		Expect(err).To(MatchError(ContainSubstring("no bot token provided")))
	})

	It("lists the model catalog", func() {
		Expect(os.MkdirAll(filepath.Join(dir, "config"), 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "config", "llm_models.yaml"), []byte("llm_models:\n  - name: small\n"), 0o644)).To(Succeed())

		out, err := run("models", "--json")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(MatchJSON(`{"models":["small"],"prompts":[]}`))
	})
})
