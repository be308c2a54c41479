package provider

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/balaji-balu/fusion-deploy/internal/runcontext"
)

const NameAzure = "azure"

var azureNames = inputNames{
	APIKey:                 "apiKey",
	OrgID:                  "orgId",
	APIHostname:            "apiHostname",
	BundlePrefix:           "bundlePrefix",
	PagebuilderVersion:     "pagebuilderVersion",
	Artifact:               "artifact",
	RetryCount:             "retryCount",
	RetryDelay:             "retryDelay",
	MinimumRunningVersions: "minimumRunningVersions",
	TerminateRetryCount:    "terminateRetryCount",
	TerminateRetryDelay:    "terminateRetryDelay",
	Deploy:                 "deploy",
	Promote:                "promote",
	Journal:                "journal",
	GitHubToken:            "githubToken",
	NATSURL:                "natsUrl",
}

// Azure speaks Azure Pipelines logging commands.
type Azure struct {
	base
}

func NewAzure(opts Options) *Azure {
	return &Azure{base{opts: opts.withDefaults()}}
}

func (a *Azure) Name() string { return NameAzure }

// GetInput reads INPUT_<NAME> as the agent exports it, then the snake cased
// INPUT_API_KEY form for camelCase names.
func (a *Azure) GetInput(name string) string {
	for _, key := range []string{
		"INPUT_" + strings.ToUpper(strings.ReplaceAll(name, " ", "_")),
		"INPUT_" + strings.ToUpper(snake(name, '_')),
	} {
		if v := a.getenv(key); v != "" {
			return v
		}
	}
	return a.fallback(snake(name, '-'))
}

func (a *Azure) Debug(msg string) { fmt.Fprintf(a.opts.Stdout, "##[debug]%s\n", escapeVSO(msg)) }

func (a *Azure) Info(msg string) { fmt.Fprintln(a.opts.Stdout, msg) }

func (a *Azure) Warning(msg string) {
	fmt.Fprintf(a.opts.Stdout, "##vso[task.logissue type=warning]%s\n", escapeVSO(msg))
}

func (a *Azure) SetFailed(msg string) {
	a.failed.Store(true)
	fmt.Fprintf(a.opts.Stdout, "##vso[task.logissue type=error]%s\n", escapeVSO(msg))
	fmt.Fprintf(a.opts.Stdout, "##vso[task.complete result=Failed;]%s\n", escapeVSO(msg))
}

func (a *Azure) GetContext() runcontext.CIContext {
	ref := a.getenv("BUILD_SOURCEBRANCH")
	ref = strings.TrimPrefix(ref, "refs/heads/")
	ref = strings.TrimPrefix(ref, "refs/tags/")
	return runcontext.CIContext{
		RefName: ref,
		SHA:     a.getenv("BUILD_SOURCEVERSION"),
	}
}

func (a *Azure) CreateRunContext() (*runcontext.RunContext, error) {
	return buildRunContext(a, &a.base, azureNames, unlessFalse)
}

var vsoEscaper = strings.NewReplacer("%", "%AZP25", "\r", "%0D", "\n", "%0A")

func escapeVSO(s string) string {
	return vsoEscaper.Replace(s)
}

// snake turns "apiHostname" into "api<sep>hostname".
func snake(name string, sep rune) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteRune(sep)
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
