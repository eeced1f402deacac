package tests

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/goleak"

	"github.com/liuxd6825/k6streams/errext/exitcodes"
	"github.com/liuxd6825/k6streams/internal/build"
	"github.com/liuxd6825/k6streams/internal/cmd"
)

func TestMain(m *testing.M) {
	// The logrus Entry.Writer goroutine of the stdlib log redirection can
	// outlive a command for a little while.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("io.(*pipe).read"))
}

func writeFile(t *testing.T, ts *GlobalTestState, path, data string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(ts.FS, path, []byte(data), 0o644))
}

func TestVersion(t *testing.T) {
	t.Parallel()

	ts := NewGlobalTestState(t)
	ts.CmdArgs = []string{"k6streams", "version"}
	cmd.ExecuteWithGlobalState(ts.GlobalState)

	stdout := ts.Stdout.String()
	assert.Contains(t, stdout, "k6streams v"+build.Version)
	assert.NotContains(t, stdout[:len(stdout)-1], "\n")
	assert.Empty(t, ts.Stderr.Bytes())
}

func TestVersionJSON(t *testing.T) {
	t.Parallel()

	ts := NewGlobalTestState(t)
	ts.CmdArgs = []string{"k6streams", "version", "--json"}
	cmd.ExecuteWithGlobalState(ts.GlobalState)

	stdout := ts.Stdout.String()
	require.True(t, gjson.Valid(stdout))
	assert.Equal(t, "v"+build.Version, gjson.Get(stdout, "version").String())
	assert.NotEmpty(t, gjson.Get(stdout, "go_version").String())
}

func TestCat(t *testing.T) {
	t.Parallel()

	t.Run("plain", func(t *testing.T) {
		t.Parallel()

		ts := NewGlobalTestState(t)
		writeFile(t, ts, "/test/in.txt", "a\nbb\nccc\n")
		ts.CmdArgs = []string{"k6streams", "cat", "/test/in.txt"}
		cmd.ExecuteWithGlobalState(ts.GlobalState)

		assert.Equal(t, "a\nbb\nccc\n", ts.Stdout.String())
		assert.Equal(t, "/test/in.txt: 3 chunks, 9 bytes\n", ts.Stderr.String())
	})

	t.Run("gzip", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, err := zw.Write([]byte("compressed\nlines"))
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		ts := NewGlobalTestState(t)
		writeFile(t, ts, "/test/in.txt.gz", buf.String())
		ts.CmdArgs = []string{"k6streams", "--quiet", "cat", "--high-water-mark", "1", "/test/in.txt.gz"}
		cmd.ExecuteWithGlobalState(ts.GlobalState)

		assert.Equal(t, "compressed\nlines\n", ts.Stdout.String())
		assert.Empty(t, ts.Stderr.Bytes())
	})

	t.Run("stdin", func(t *testing.T) {
		t.Parallel()

		ts := NewGlobalTestState(t)
		ts.Stdin = bytes.NewBufferString("from\nstdin\n")
		ts.CmdArgs = []string{"k6streams", "-q", "cat", "-"}
		cmd.ExecuteWithGlobalState(ts.GlobalState)

		assert.Equal(t, "from\nstdin\n", ts.Stdout.String())
	})

	t.Run("throttled", func(t *testing.T) {
		t.Parallel()

		ts := NewGlobalTestState(t)
		writeFile(t, ts, "/test/in.txt", "1\n2\n3\n")
		ts.CmdArgs = []string{"k6streams", "-q", "cat", "--rate", "50", "/test/in.txt"}
		start := time.Now()
		cmd.ExecuteWithGlobalState(ts.GlobalState)

		assert.Equal(t, "1\n2\n3\n", ts.Stdout.String())
		// The first pull is covered by the burst.
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})
}

func TestCatMissingFile(t *testing.T) {
	t.Parallel()

	ts := NewGlobalTestState(t)
	ts.CmdArgs = []string{"k6streams", "cat", "/test/missing.txt"}
	ts.ExpectedExitCode = int(exitcodes.CannotOpenInput)
	cmd.ExecuteWithGlobalState(ts.GlobalState)

	assert.True(t, ts.LoggerHook.Contains(logrus.ErrorLevel, "couldn't open the input"))
	assert.Empty(t, ts.Stdout.Bytes())
}

func TestCatCorruptedFile(t *testing.T) {
	t.Parallel()

	ts := NewGlobalTestState(t)
	writeFile(t, ts, "/test/in.txt.gz", "definitely not gzip")
	ts.CmdArgs = []string{"k6streams", "cat", "/test/in.txt.gz"}
	ts.ExpectedExitCode = int(exitcodes.CannotOpenInput)
	cmd.ExecuteWithGlobalState(ts.GlobalState)

	assert.True(t, ts.LoggerHook.Contains(logrus.ErrorLevel, "error decompressing"))
}

func TestWrongConfig(t *testing.T) {
	t.Parallel()

	t.Run("env", func(t *testing.T) {
		t.Parallel()

		ts := NewGlobalTestState(t)
		writeFile(t, ts, "/test/in.txt", "a\n")
		ts.Env["K6STREAMS_HIGH_WATER_MARK"] = "-1"
		ts.CmdArgs = []string{"k6streams", "cat", "/test/in.txt"}
		ts.ExpectedExitCode = int(exitcodes.InvalidConfig)
		cmd.ExecuteWithGlobalState(ts.GlobalState)

		entries := ts.LoggerHook.Drain()
		require.NotEmpty(t, entries)
		last := entries[len(entries)-1]
		assert.Contains(t, last.Message, "invalid high water mark -1")
		assert.Equal(t, "see the --help output for the accepted values", last.Data["hint"])
		assert.Empty(t, ts.Stdout.Bytes())
	})

	t.Run("env not a number", func(t *testing.T) {
		t.Parallel()

		ts := NewGlobalTestState(t)
		ts.Env["K6STREAMS_RATE"] = "fast"
		ts.CmdArgs = []string{"k6streams", "cat", "/test/in.txt"}
		ts.ExpectedExitCode = int(exitcodes.InvalidConfig)
		cmd.ExecuteWithGlobalState(ts.GlobalState)

		assert.True(t, ts.LoggerHook.Contains(logrus.ErrorLevel, "K6STREAMS_RATE"))
	})

	t.Run("flag", func(t *testing.T) {
		t.Parallel()

		ts := NewGlobalTestState(t)
		ts.CmdArgs = []string{"k6streams", "cat", "--decompress", "lz4", "/test/in.txt"}
		ts.ExpectedExitCode = int(exitcodes.InvalidConfig)
		cmd.ExecuteWithGlobalState(ts.GlobalState)

		assert.True(t, ts.LoggerHook.Contains(logrus.ErrorLevel, "lz4"))
	})

	t.Run("log output", func(t *testing.T) {
		t.Parallel()

		ts := NewGlobalTestState(t)
		ts.CmdArgs = []string{"k6streams", "--log-output", "syslog", "cat", "/test/in.txt"}
		ts.ExpectedExitCode = int(exitcodes.InvalidConfig)
		cmd.ExecuteWithGlobalState(ts.GlobalState)

		assert.True(t, ts.LoggerHook.Contains(logrus.ErrorLevel, "unsupported log output 'syslog'"))
	})
}

func TestConfigFile(t *testing.T) {
	t.Parallel()

	ts := NewGlobalTestState(t)
	writeFile(t, ts, "/test/config.yaml", "highWaterMark: 2\nrate: 0\n")
	writeFile(t, ts, "/test/in.txt", "a\n")
	ts.Env["K6STREAMS_DECOMPRESS"] = "none"
	ts.CmdArgs = []string{"k6streams", "-v", "-q", "--config", "/test/config.yaml", "cat", "/test/in.txt"}
	cmd.ExecuteWithGlobalState(ts.GlobalState)

	assert.Equal(t, "a\n", ts.Stdout.String())

	entries := ts.LoggerHook.Drain()
	var found bool
	for _, e := range entries {
		if e.Message != "Consolidated the configuration" {
			continue
		}
		found = true
		assert.Equal(t, 2.0, e.Data["highWaterMark"])
		assert.Equal(t, "none", e.Data["decompress"])
	}
	assert.True(t, found)
}

func TestConfigFileMissing(t *testing.T) {
	t.Parallel()

	ts := NewGlobalTestState(t)
	ts.CmdArgs = []string{"k6streams", "--config", "/test/nope.yaml", "cat", "/test/in.txt"}
	ts.ExpectedExitCode = int(exitcodes.InvalidConfig)
	cmd.ExecuteWithGlobalState(ts.GlobalState)

	assert.True(t, ts.LoggerHook.Contains(logrus.ErrorLevel, "couldn't load the configuration"))
}

func TestLogOutputFile(t *testing.T) {
	t.Parallel()

	ts := NewGlobalTestState(t)
	writeFile(t, ts, "/test/in.txt", "a\n")
	ts.CmdArgs = []string{
		"k6streams", "-v", "-q", "--log-output", "file=/test/k6streams.log,level=debug",
		"--log-format", "json", "cat", "/test/in.txt",
	}
	cmd.ExecuteWithGlobalState(ts.GlobalState)

	assert.Empty(t, ts.Stderr.Bytes())
	data, err := afero.ReadFile(ts.FS, "/test/k6streams.log")
	require.NoError(t, err)
	var found bool
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		entry := gjson.Parse(line)
		if entry.Get("msg").String() != "Consolidated the configuration" {
			continue
		}
		found = true
		assert.Equal(t, "debug", entry.Get("level").String())
		assert.Equal(t, 16.0, entry.Get("highWaterMark").Float())
	}
	assert.True(t, found, "the configuration wasn't logged to the file")
}

func TestTee(t *testing.T) {
	t.Parallel()

	ts := NewGlobalTestState(t)
	writeFile(t, ts, "/test/in.txt", "a\nb\nc\n")
	ts.CmdArgs = []string{"k6streams", "tee", "--limit1", "1", "/test/in.txt", "/test/out1.txt", "/test/out2.txt"}
	cmd.ExecuteWithGlobalState(ts.GlobalState)

	out1, err := afero.ReadFile(ts.FS, "/test/out1.txt")
	require.NoError(t, err)
	assert.Equal(t, "a\n", string(out1))

	out2, err := afero.ReadFile(ts.FS, "/test/out2.txt")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\n", string(out2))

	stderr := ts.Stderr.String()
	assert.Contains(t, stderr, "/test/out1.txt: 1 chunks, 2 bytes\n")
	assert.Contains(t, stderr, "/test/out2.txt: 3 chunks, 6 bytes\n")
}

func TestTeeBothLimited(t *testing.T) {
	t.Parallel()

	ts := NewGlobalTestState(t)
	writeFile(t, ts, "/test/in.txt", "a\nb\nc\nd\n")
	ts.CmdArgs = []string{
		"k6streams", "-q", "tee", "--limit1", "1", "--limit2", "2",
		"/test/in.txt", "/test/out1.txt", "/test/out2.txt",
	}
	cmd.ExecuteWithGlobalState(ts.GlobalState)

	out1, err := afero.ReadFile(ts.FS, "/test/out1.txt")
	require.NoError(t, err)
	assert.Equal(t, "a\n", string(out1))

	out2, err := afero.ReadFile(ts.FS, "/test/out2.txt")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(out2))
}

func TestCSV(t *testing.T) {
	t.Parallel()

	t.Run("header", func(t *testing.T) {
		t.Parallel()

		ts := NewGlobalTestState(t)
		writeFile(t, ts, "/test/in.csv", "name,age\nada,36\nalan,41,extra\n")
		ts.CmdArgs = []string{"k6streams", "-q", "csv", "/test/in.csv"}
		cmd.ExecuteWithGlobalState(ts.GlobalState)

		assert.Equal(t,
			`{"age":"36","name":"ada"}`+"\n"+`{"2":"extra","age":"41","name":"alan"}`+"\n",
			ts.Stdout.String())
	})

	t.Run("no header", func(t *testing.T) {
		t.Parallel()

		ts := NewGlobalTestState(t)
		writeFile(t, ts, "/test/in.csv", "a;b\nc;d\n")
		ts.Env["K6STREAMS_CSV_HEADER"] = "false"
		ts.CmdArgs = []string{"k6streams", "-q", "csv", "--comma", ";", "/test/in.csv"}
		cmd.ExecuteWithGlobalState(ts.GlobalState)

		assert.Equal(t, `["a","b"]`+"\n"+`["c","d"]`+"\n", ts.Stdout.String())
	})

	t.Run("malformed", func(t *testing.T) {
		t.Parallel()

		ts := NewGlobalTestState(t)
		writeFile(t, ts, "/test/in.csv", "a,b\n\"unterminated\n")
		ts.CmdArgs = []string{"k6streams", "-q", "csv", "/test/in.csv"}
		ts.ExpectedExitCode = int(exitcodes.StreamErrored)
		cmd.ExecuteWithGlobalState(ts.GlobalState)

		assert.True(t, ts.LoggerHook.Contains(logrus.ErrorLevel, "parse error"))
	})

	t.Run("wrong delimiter", func(t *testing.T) {
		t.Parallel()

		ts := NewGlobalTestState(t)
		ts.CmdArgs = []string{"k6streams", "csv", "--comma", "::", "/test/in.csv"}
		ts.ExpectedExitCode = int(exitcodes.InvalidConfig)
		cmd.ExecuteWithGlobalState(ts.GlobalState)

		assert.True(t, ts.LoggerHook.Contains(logrus.ErrorLevel, "invalid delimiter"))
	})
}

func TestInterrupt(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	ts := NewGlobalTestState(t)
	ts.Stdin = pr
	ts.CmdArgs = []string{"k6streams", "cat", "-"}
	ts.ExpectedExitCode = int(exitcodes.Interrupted)

	done := make(chan struct{})
	go func() {
		defer close(done)
		cmd.ExecuteWithGlobalState(ts.GlobalState)
	}()

	var sigC chan<- os.Signal
	select {
	case sigC = <-ts.Signals:
	case <-time.After(5 * time.Second):
		t.Fatal("the command didn't subscribe to signals")
	}

	_, err := pw.Write([]byte("first\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return ts.Stdout.String() == "first\n"
	}, 5*time.Second, 5*time.Millisecond)

	sigC <- os.Interrupt
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("the command didn't stop after the signal")
	}

	assert.True(t, ts.LoggerHook.Contains(logrus.ErrorLevel, "interrupted by signal"))
	assert.Contains(t, ts.Stderr.String(), "-: 1 chunks, 6 bytes\n")
	_ = pw.Close()
}
