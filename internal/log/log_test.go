package log

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizer(t *testing.T) {
	t.Parallel()

	tokens, err := tokenize("file=/tmp/a.log,s.e=2231,a=[1,2,3],b=[1],level=info")
	require.NoError(t, err)
	assert.Equal(t, []token{
		{key: "file", value: "/tmp/a.log"},
		{key: "s.e", value: "2231"},
		{key: "a", value: "1,2,3", inside: '['},
		{key: "b", value: "1", inside: '['},
		{key: "level", value: "info"},
	}, tokens)

	_, err = tokenize("empty=")
	assert.EqualError(t, err, "key `empty=` with no value")

	_, err = tokenize("novalue")
	assert.Error(t, err)

	_, err = tokenize("a=[1,2")
	assert.Error(t, err)
}

func TestParseLevels(t *testing.T) {
	t.Parallel()

	levels, err := parseLevels("warning")
	require.NoError(t, err)
	assert.Equal(t, []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}, levels)

	_, err = parseLevels("tea")
	assert.EqualError(t, err, "unknown log level tea")
}

func TestFileHookFromConfigLine(t *testing.T) {
	t.Parallel()

	tests := [...]struct {
		line       string
		errMessage string
		levels     []logrus.Level
	}{
		{line: "file=/k6streams.log,level=info", levels: logrus.AllLevels[:5]},
		{line: "file=relative.log", levels: logrus.AllLevels},
		{line: "file", errMessage: "error while parsing logfile configuration key `file` with no value"},
		{line: "file=/a/c/x.log", errMessage: "provided directory '/a/c' does not exist"},
		{line: "file=/tmp/k6.log,level=tea", errMessage: "unknown log level tea"},
		{line: "file=/tmp/k6.log,level=", errMessage: "error while parsing logfile configuration key `level=` with no value"},
		{line: "file=/tmp/k6.log,unknown=something", errMessage: "unknown logfile config key unknown"},
		{line: "level=info", errMessage: "logfile configuration should be in the form `file=path-to-local-file` but is `level=info`"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.line, func(t *testing.T) {
			t.Parallel()

			fs := afero.NewMemMapFs()
			require.NoError(t, fs.MkdirAll("/tmp", 0o755))
			getCwd := func() (string, error) { return "/tmp", nil }

			res, err := FileHookFromConfigLine(fs, getCwd, logrus.New(), test.line)
			if test.errMessage != "" {
				require.EqualError(t, err, test.errMessage)
				return
			}

			require.NoError(t, err)
			hook, ok := res.(*fileHook)
			require.True(t, ok)
			assert.NotNil(t, hook.w)
			assert.Equal(t, test.levels, hook.Levels())
		})
	}
}

func TestFileHookListen(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	hook, err := FileHookFromConfigLine(fs, nil, logrus.New(), "file=/k6streams.log,level=info")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hook.Listen(ctx)
	}()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	logger.AddHook(hook)

	logger.Info("kept line")
	logger.Debug("filtered line")

	cancel()
	<-done

	content, err := afero.ReadFile(fs, "/k6streams.log")
	require.NoError(t, err)
	assert.Contains(t, string(content), "kept line")
	assert.NotContains(t, string(content), "filtered line")
}
