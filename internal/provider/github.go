package provider

import (
	"fmt"
	"strings"

	"github.com/balaji-balu/fusion-deploy/internal/runcontext"
)

const NameGitHub = "github"

// GitHub speaks GitHub Actions workflow commands.
type GitHub struct {
	base
}

func NewGitHub(opts Options) *GitHub {
	return &GitHub{base{opts: opts.withDefaults()}}
}

func (g *GitHub) Name() string { return NameGitHub }

// GetInput reads INPUT_<NAME> with spaces replaced by underscores. Dashes
// are kept, as the runner does.
func (g *GitHub) GetInput(name string) string {
	key := "INPUT_" + strings.ToUpper(strings.ReplaceAll(name, " ", "_"))
	if v := g.getenv(key); v != "" {
		return v
	}
	return g.fallback(name)
}

func (g *GitHub) Debug(msg string) { g.command("debug", msg) }

func (g *GitHub) Info(msg string) { fmt.Fprintln(g.opts.Stdout, msg) }

func (g *GitHub) Warning(msg string) { g.command("warning", msg) }

func (g *GitHub) SetFailed(msg string) {
	g.failed.Store(true)
	g.command("error", msg)
}

func (g *GitHub) GetContext() runcontext.CIContext {
	return runcontext.CIContext{
		RefName: g.getenv("GITHUB_REF_NAME"),
		SHA:     g.getenv("GITHUB_SHA"),
	}
}

func (g *GitHub) CreateRunContext() (*runcontext.RunContext, error) {
	return buildRunContext(g, &g.base, dashedNames, onlyTrue)
}

func (g *GitHub) command(name, msg string) {
	fmt.Fprintf(g.opts.Stdout, "::%s::%s\n", name, escapeData(msg))
}

var dataEscaper = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")

func escapeData(s string) string {
	return dataEscaper.Replace(s)
}
