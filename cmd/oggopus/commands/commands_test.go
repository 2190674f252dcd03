package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type testEnv struct {
	dir     string
	cfgPath string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	env := &testEnv{dir: dir, cfgPath: filepath.Join(dir, "config.yaml")}
	env.mustRun(t, "config", "add-context", "test", "--index-dir", filepath.Join(dir, "index"))
	env.mustRun(t, "config", "use-context", "test")
	return env
}

func (e *testEnv) path(name string) string {
	return filepath.Join(e.dir, name)
}

func (e *testEnv) run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var outBuf, errBuf bytes.Buffer
	rootCmd.SetOut(&outBuf)
	rootCmd.SetErr(&errBuf)
	rootCmd.SetArgs(append([]string{"--config", e.cfgPath}, args...))

	cfgFile, contextName, outputFormat, jqExpr, verbose = "", "", "yaml", "", false
	err = rootCmd.ExecuteContext(context.Background())

	resetFlags(rootCmd)
	return outBuf.String(), errBuf.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("%v: %v\nstderr: %s", args, err, stderr)
	}
	return stdout
}

func (e *testEnv) runJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	stdout := e.mustRun(t, append(args, "-o", "json")...)
	if err := json.Unmarshal([]byte(stdout), v); err != nil {
		t.Fatalf("%v: invalid JSON: %v\n%s", args, err, stdout)
	}
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				sv.Replace(nil)
			} else {
				f.Value.Set(f.DefValue)
			}
		}
		f.Changed = false
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// synth writes a stereo 20 ms CELT stream of count packets.
func (e *testEnv) synth(t *testing.T, name string, count int, extra ...string) string {
	t.Helper()
	p := e.path(name)
	args := append([]string{"synth", p, "--count", strconv.Itoa(count), "--toc", "0xFC"}, extra...)
	e.mustRun(t, args...)
	return p
}

func TestVersion(t *testing.T) {
	env := setupTestEnv(t)

	stdout := env.mustRun(t, "version")
	if !strings.Contains(stdout, "oggopus") {
		t.Fatalf("expected 'oggopus', got: %s", stdout)
	}

	var info struct {
		Version string `json:"version"`
	}
	env.runJSON(t, &info, "version")
	if info.Version == "" {
		t.Fatal("version missing from JSON output")
	}
}

func TestInvalidOutputFormat(t *testing.T) {
	env := setupTestEnv(t)
	if _, _, err := env.run(t, "version", "-o", "xml"); err == nil {
		t.Fatal("expected error for -o xml")
	}
}

type probeJSON struct {
	Serial uint32 `json:"serial"`
	Config struct {
		MimeType   string `json:"mime_type"`
		Channels   int    `json:"channels"`
		SampleRate int    `json:"sample_rate"`
		Metadata   []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"metadata"`
		Header struct {
			PreSkip uint16 `json:"pre_skip"`
		} `json:"header"`
	} `json:"config"`
	Packets    int64 `json:"packets"`
	DurationUs int64 `json:"duration_us"`
	PlayableUs int64 `json:"playable_us"`
}

func TestSynthAndProbe(t *testing.T) {
	env := setupTestEnv(t)
	p := env.synth(t, "a.opus", 50, "--tag", "TITLE=test tone", "--tag", "ARTIST=nobody")

	var got probeJSON
	env.runJSON(t, &got, "probe", p)

	if got.Config.MimeType != "audio/opus" || got.Config.Channels != 2 || got.Config.SampleRate != 48000 {
		t.Errorf("config = %+v", got.Config)
	}
	if got.Config.Header.PreSkip != 3840 {
		t.Errorf("pre_skip = %d, want 3840", got.Config.Header.PreSkip)
	}
	if got.Packets != 50 {
		t.Errorf("packets = %d, want 50", got.Packets)
	}
	if got.DurationUs != 1_000_000 {
		t.Errorf("duration_us = %d, want 1000000", got.DurationUs)
	}
	if got.PlayableUs != 1_000_000-80_000 {
		t.Errorf("playable_us = %d, want 920000", got.PlayableUs)
	}
	if len(got.Config.Metadata) != 2 || got.Config.Metadata[0].Key != "TITLE" || got.Config.Metadata[0].Value != "test tone" {
		t.Errorf("metadata = %+v", got.Config.Metadata)
	}
}

func TestProbeHeadersOnly(t *testing.T) {
	env := setupTestEnv(t)
	p := env.synth(t, "a.opus", 10)

	var got probeJSON
	env.runJSON(t, &got, "probe", p, "--headers-only")
	if got.Packets != 0 || got.DurationUs != 0 {
		t.Errorf("headers-only probe scanned packets: %+v", got)
	}
	if got.Config.Channels != 2 {
		t.Errorf("channels = %d", got.Config.Channels)
	}
}

func TestProbeJQ(t *testing.T) {
	env := setupTestEnv(t)
	p := env.synth(t, "a.opus", 25)

	stdout := env.mustRun(t, "probe", p, "-o", "json", "--jq", ".packets")
	if strings.TrimSpace(stdout) != "25" {
		t.Errorf("--jq .packets = %q, want 25", stdout)
	}
}

func TestProbeTable(t *testing.T) {
	env := setupTestEnv(t)
	p := env.synth(t, "a.opus", 5, "--tag", "TITLE=x")

	stdout := env.mustRun(t, "probe", p, "-o", "table")
	for _, want := range []string{"FIELD", "channels", "pre-skip", "tag TITLE"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("table missing %q:\n%s", want, stdout)
		}
	}
}

func TestProbeErrors(t *testing.T) {
	env := setupTestEnv(t)

	if _, _, err := env.run(t, "probe", env.path("missing.opus")); !os.IsNotExist(err) {
		t.Errorf("missing file: err = %v, want not-exist", err)
	}

	junk := env.path("junk.opus")
	if err := os.WriteFile(junk, bytes.Repeat([]byte("not an ogg page "), 4), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := env.run(t, "probe", junk); err == nil {
		t.Error("expected error for a file that is not Ogg")
	}
}

type packetJSON struct {
	TimeUs     int64  `json:"time_us"`
	DurationUs int64  `json:"duration_us"`
	Granule    int64  `json:"granule"`
	Mode       string `json:"mode"`
	Bandwidth  string `json:"bandwidth"`
	SampleRate int    `json:"sample_rate"`
	Samples    int    `json:"samples"`
	Stereo     bool   `json:"stereo"`
	Frames     int    `json:"frames"`
}

func TestPackets(t *testing.T) {
	env := setupTestEnv(t)
	p := env.synth(t, "a.opus", 20)

	var got []packetJSON
	env.runJSON(t, &got, "packets", p, "--limit", "3")
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, pkt := range got {
		if pkt.TimeUs != int64(i)*20000 || pkt.DurationUs != 20000 {
			t.Errorf("packet %d timing = %d/%d", i, pkt.TimeUs, pkt.DurationUs)
		}
		if pkt.Granule != int64(i+1)*960 {
			t.Errorf("packet %d granule = %d", i, pkt.Granule)
		}
		if pkt.Mode != "CELT" || pkt.Bandwidth != "Fullband" || pkt.SampleRate != 48000 || !pkt.Stereo || pkt.Frames != 1 || pkt.Samples != 960 {
			t.Errorf("packet %d = %+v", i, pkt)
		}
	}

	env.runJSON(t, &got, "packets", p)
	if len(got) != 20 {
		t.Errorf("unlimited len = %d, want 20", len(got))
	}
}

func TestPacketsCode3(t *testing.T) {
	env := setupTestEnv(t)
	// SILK NB 60 ms, code 3 with 2 frames.
	p := env.path("code3.opus")
	env.mustRun(t, "synth", p, "--count", "4", "--toc", "0x1B", "--frames", "2", "--channels", "1")

	var got []packetJSON
	env.runJSON(t, &got, "packets", p)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	if got[1].TimeUs != 120000 || got[1].DurationUs != 120000 || got[1].Frames != 2 || got[1].Mode != "Silk" {
		t.Errorf("packet 1 = %+v", got[1])
	}
}

func TestSynthErrors(t *testing.T) {
	env := setupTestEnv(t)
	p := env.path("x.opus")

	tests := [][]string{
		{"synth", p, "--toc", "0x1FF"},
		{"synth", p, "--toc", "nope"},
		{"synth", p, "--channels", "3"},
		{"synth", p, "--tag", "NOEQUALS"},
		{"synth", p, "--toc", "0x03", "--frames", "0"},
	}
	for _, args := range tests {
		if _, _, err := env.run(t, args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

type recordJSON struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Summary struct {
		Channels int   `json:"channels"`
		Packets  int64 `json:"packets"`
	} `json:"summary"`
	Table struct {
		Points []struct {
			TimeUs  int64 `json:"time_us"`
			Granule int64 `json:"granule"`
			Offset  int64 `json:"offset"`
		} `json:"points"`
		DurationUs int64 `json:"duration_us"`
	} `json:"table"`
}

func TestIndexLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	p := env.synth(t, "a.opus", 30)

	var built []recordJSON
	env.runJSON(t, &built, "index", "build", p)
	if len(built) != 1 {
		t.Fatalf("build output = %+v", built)
	}
	rec := built[0]
	if rec.Source != p || rec.Summary.Packets != 30 || rec.Summary.Channels != 2 {
		t.Errorf("record = %+v", rec)
	}
	// One page per packet.
	if len(rec.Table.Points) != 30 || rec.Table.DurationUs != 600_000 {
		t.Errorf("table: %d points, %dus", len(rec.Table.Points), rec.Table.DurationUs)
	}

	var shown recordJSON
	env.runJSON(t, &shown, "index", "show", p)
	if shown.ID != rec.ID {
		t.Errorf("show by path: id = %q, want %q", shown.ID, rec.ID)
	}
	env.runJSON(t, &shown, "index", "show", rec.ID)
	if shown.Source != p {
		t.Errorf("show by id: source = %q", shown.Source)
	}

	// Rebuilding replaces the record of the source.
	env.runJSON(t, &built, "index", "build", p)
	var list []recordJSON
	env.runJSON(t, &list, "index", "list")
	if len(list) != 1 || list[0].ID != built[0].ID {
		t.Fatalf("list = %+v", list)
	}

	table := env.mustRun(t, "index", "list", "-o", "table")
	if !strings.Contains(table, "SOURCE") || !strings.Contains(table, "30") {
		t.Errorf("list table:\n%s", table)
	}

	stdout := env.mustRun(t, "index", "delete", built[0].ID)
	if !strings.Contains(stdout, "deleted") {
		t.Errorf("delete output = %q", stdout)
	}
	if _, _, err := env.run(t, "index", "show", p); err == nil {
		t.Error("show after delete should fail")
	}
	if _, _, err := env.run(t, "index", "delete", built[0].ID); err == nil {
		t.Error("second delete should fail")
	}
}

type seekJSON struct {
	TargetUs int64 `json:"target_us"`
	Point    struct {
		TimeUs int64 `json:"time_us"`
		Offset int64 `json:"offset"`
	} `json:"point"`
	FromIndex bool         `json:"from_index"`
	Packets   []packetJSON `json:"packets"`
}

func TestSeek(t *testing.T) {
	env := setupTestEnv(t)
	p := env.synth(t, "a.opus", 50)

	check := func(t *testing.T, got seekJSON, fromIndex bool) {
		t.Helper()
		if got.FromIndex != fromIndex {
			t.Errorf("from_index = %v, want %v", got.FromIndex, fromIndex)
		}
		if got.TargetUs != 500_000 || got.Point.TimeUs > 500_000 || got.Point.Offset <= 0 {
			t.Errorf("target/point = %d/%+v", got.TargetUs, got.Point)
		}
		if len(got.Packets) != 2 {
			t.Fatalf("packets = %+v", got.Packets)
		}
		if got.Packets[0].TimeUs != 500_000 || got.Packets[1].TimeUs != 520_000 {
			t.Errorf("packet times = %d, %d", got.Packets[0].TimeUs, got.Packets[1].TimeUs)
		}
	}

	t.Run("scan", func(t *testing.T) {
		var got seekJSON
		env.runJSON(t, &got, "seek", p, "--at", "500ms", "--count", "2")
		check(t, got, false)
	})

	t.Run("index", func(t *testing.T) {
		env.mustRun(t, "index", "build", p)
		var got seekJSON
		env.runJSON(t, &got, "seek", p, "--at", "500ms", "--count", "2")
		check(t, got, true)
	})

	t.Run("past end", func(t *testing.T) {
		var got seekJSON
		env.runJSON(t, &got, "seek", p, "--at", "10s")
		if len(got.Packets) != 0 {
			t.Errorf("packets past the end = %+v", got.Packets)
		}
	})

	t.Run("negative", func(t *testing.T) {
		if _, _, err := env.run(t, "seek", p, "--at", "-1s"); err == nil {
			t.Error("expected error for a negative --at")
		}
	})
}

func TestLocalRootContext(t *testing.T) {
	env := setupTestEnv(t)
	root := env.path("media")
	env.mustRun(t, "config", "add-context", "media", "--root", root, "--index-dir", env.path("idx2"))

	env.mustRun(t, "-c", "media", "synth", "shows/ep1.opus", "--count", "5")
	if _, err := os.Stat(filepath.Join(root, "shows", "ep1.opus")); err != nil {
		t.Fatalf("stream not written under root: %v", err)
	}

	var got probeJSON
	env.runJSON(t, &got, "-c", "media", "probe", "shows/ep1.opus")
	if got.Packets != 5 {
		t.Errorf("packets = %d, want 5", got.Packets)
	}
}

func TestConfigContexts(t *testing.T) {
	env := setupTestEnv(t)

	env.mustRun(t, "config", "add-context", "minio",
		"--backend", "s3", "--bucket", "audio", "--region", "us-east-1",
		"--endpoint", "http://localhost:9000", "--path-style",
		"--access-key-id", "minio", "--secret-access-key", "supersecretvalue")

	var ctx struct {
		Name    string `json:"name"`
		Storage struct {
			Backend         string `json:"backend"`
			Bucket          string `json:"bucket"`
			SecretAccessKey string `json:"secret_access_key"`
		} `json:"storage"`
	}
	env.runJSON(t, &ctx, "config", "get-context", "minio")
	if ctx.Name != "minio" || ctx.Storage.Backend != "s3" || ctx.Storage.Bucket != "audio" {
		t.Errorf("context = %+v", ctx)
	}
	if ctx.Storage.SecretAccessKey != "supe********alue" {
		t.Errorf("secret not masked: %q", ctx.Storage.SecretAccessKey)
	}

	table := env.mustRun(t, "config", "list-contexts", "-o", "table")
	for _, want := range []string{"NAME", "minio", "s3://audio/", "test", "*"} {
		if !strings.Contains(table, want) {
			t.Errorf("list-contexts missing %q:\n%s", want, table)
		}
	}

	if _, _, err := env.run(t, "config", "add-context", "bad", "--backend", "s3"); err == nil {
		t.Error("expected error for s3 context without bucket")
	}
	if _, _, err := env.run(t, "config", "use-context", "nope"); err == nil {
		t.Error("expected error for unknown context")
	}

	env.mustRun(t, "config", "delete-context", "minio")
	stdout := env.mustRun(t, "config", "get-context")
	if !strings.Contains(stdout, "test") {
		t.Errorf("get-context = %q", stdout)
	}
}
