package provider

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/balaji-balu/fusion-deploy/internal/runcontext"
)

const NameGitLab = "gitlab"

// GitLab has no logging commands; lines are prefixed with their level and
// errors go to stderr.
type GitLab struct {
	base
	log *zap.Logger
}

func NewGitLab(opts Options) *GitLab {
	opts = opts.withDefaults()
	g := &GitLab{base: base{opts: opts}}

	minLevel := zapcore.InfoLevel
	if opts.Verbose || opts.Getenv("CI_DEBUG_TRACE") == "true" {
		minLevel = zapcore.DebugLevel
	}

	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		EncodeLevel:      gitlabLevel,
		ConsoleSeparator: " ",
	})
	out := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= minLevel && l < zapcore.ErrorLevel })
	errs := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= zapcore.ErrorLevel })

	g.log = zap.New(zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.AddSync(opts.Stdout), out),
		zapcore.NewCore(enc.Clone(), zapcore.AddSync(opts.Stderr), errs),
	))
	return g
}

func gitlabLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch {
	case l == zapcore.DebugLevel:
		enc.AppendString("[DEBUG]")
	case l == zapcore.WarnLevel:
		enc.AppendString("[WARNING]")
	case l >= zapcore.ErrorLevel:
		enc.AppendString("[ERROR]")
	}
}

func (g *GitLab) Name() string { return NameGitLab }

// GetInput reads INPUT_<NAME> with dashes and spaces turned into
// underscores, since GitLab variable names cannot contain dashes.
func (g *GitLab) GetInput(name string) string {
	key := "INPUT_" + strings.ToUpper(strings.NewReplacer("-", "_", " ", "_").Replace(name))
	if v := g.getenv(key); v != "" {
		return v
	}
	return g.fallback(name)
}

func (g *GitLab) Debug(msg string) { g.log.Debug(msg) }

func (g *GitLab) Info(msg string) { g.log.Info(msg) }

func (g *GitLab) Warning(msg string) { g.log.Warn(msg) }

func (g *GitLab) SetFailed(msg string) {
	g.failed.Store(true)
	g.log.Error(msg)
}

func (g *GitLab) GetContext() runcontext.CIContext {
	return runcontext.CIContext{
		RefName: g.getenv("CI_COMMIT_REF_NAME"),
		SHA:     g.getenv("CI_COMMIT_SHA"),
	}
}

func (g *GitLab) CreateRunContext() (*runcontext.RunContext, error) {
	return buildRunContext(g, &g.base, dashedNames, unlessFalse)
}
