// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audit

import (
	"encoding/json"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/pdiddy/notebook-engine/pkg/types"
)

// Compatibility rule identifiers.
const (
	RuleSubprocessPip    = "subprocess_pip"
	RuleHardcodedSecret  = "hardcoded_credential"
	RuleDeviceMapAuto    = "device_map_auto"
	fixEnvDetectionAdded = "environment detection cell prepended"
)

var (
	pipCallRe  = regexp.MustCompile(`subprocess\.check_call.*pip.*install`)
	pipGuardRe = regexp.MustCompile(`(?m)^\s*(if|elif)\b.*\bIN_COLAB\b`)
	pipMagicRe = regexp.MustCompile(`run_line_magic\(\s*["']pip["']`)
	pipFixRe   = regexp.MustCompile(`(?m)^([ \t]*)subprocess\.check_call\((\[\s*sys\.executable\s*,\s*["']-m["']\s*,\s*["']pip["']\s*,\s*["']install["'][^\]]*\])\)[ \t]*$`)

	secretRe    = regexp.MustCompile(`os\.environ\[\s*["']([A-Za-z0-9_]*(?:TOKEN|KEY|SECRET|PASSWORD))["']\s*\]\s*=\s*["'][^"'\n]+["']`)
	secretFixRe = regexp.MustCompile(`(?m)^([ \t]*)os\.environ\[\s*["']([A-Za-z0-9_]*(?:TOKEN|KEY|SECRET|PASSWORD))["']\s*\]\s*=\s*["'][^"'\n]+["'][ \t]*$`)

	deviceMapRe = regexp.MustCompile(`device_map\s*=\s*["']auto["']`)

	inColabDefRe = regexp.MustCompile(`(?m)^\s*IN_COLAB\s*=`)
)

type compatRule struct {
	id       string
	severity types.Severity
	message  string
	fix      string
	detect   func(src string) bool
	apply    func(src string) string
}

var compatRules = []compatRule{
	{
		id:       RuleSubprocessPip,
		severity: types.SeverityCritical,
		message:  "pip install through subprocess without a Colab guard fails in hosted runtimes",
		fix:      "guard the install with IN_COLAB and use the pip line magic there",
		detect: func(src string) bool {
			if !pipCallRe.MatchString(src) {
				return false
			}
			return !(pipGuardRe.MatchString(src) && pipMagicRe.MatchString(src))
		},
		apply: func(src string) string {
			return pipFixRe.ReplaceAllString(src,
				"${1}if IN_COLAB:\n"+
					"${1}    get_ipython().run_line_magic('pip', 'install ' + ' '.join(str(a) for a in ${2}[4:]))\n"+
					"${1}else:\n"+
					"${1}    subprocess.check_call(${2})")
		},
	},
	{
		id:       RuleHardcodedSecret,
		severity: types.SeverityCritical,
		message:  "credential literal assigned into os.environ",
		fix:      "prompt for the credential with getpass when it is not already set",
		detect:   secretRe.MatchString,
		apply: func(src string) string {
			return secretFixRe.ReplaceAllString(src,
				"${1}if not os.environ.get(\"${2}\"):\n"+
					"${1}    from getpass import getpass\n"+
					"${1}    os.environ[\"${2}\"] = getpass(\"Enter ${2}: \")")
		},
	},
	{
		id:       RuleDeviceMapAuto,
		severity: types.SeverityWarning,
		message:  `device_map="auto" may place layers poorly on single-GPU runtimes`,
		fix:      "select cuda:0 when available, otherwise cpu",
		detect:   deviceMapRe.MatchString,
		apply: func(src string) string {
			return deviceMapRe.ReplaceAllString(src, `device_map=("cuda:0" if torch.cuda.is_available() else "cpu")`)
		},
	},
}

const compatEnvCell = `# Environment detection
import sys
IN_COLAB = 'google.colab' in sys.modules
print(f'Environment: {"Colab" if IN_COLAB else "Local"}')
`

// CompatibilityChecker finds code idioms that break in hosted notebook
// runtimes and patches them.
type CompatibilityChecker struct {
	logger zerolog.Logger
}

// NewCompatibilityChecker returns a CompatibilityChecker.
func NewCompatibilityChecker(logger zerolog.Logger) *CompatibilityChecker {
	return &CompatibilityChecker{logger: logger.With().Str("component", "compat").Logger()}
}

// Check scans the code cells of nb. When a critical issue is found it
// returns a patched clone alongside the result; otherwise the returned
// notebook is nil. nb is never modified. Issues describe the input notebook;
// Compatible describes the notebook the caller should ship.
func (c *CompatibilityChecker) Check(nb *types.Notebook) (types.CompatibilityResult, *types.Notebook) {
	issues := detect(nb)
	res := types.CompatibilityResult{Issues: issues}
	for _, is := range issues {
		if is.Severity == types.SeverityCritical {
			res.CriticalCount++
		} else {
			res.WarningCount++
		}
	}
	if res.CriticalCount == 0 {
		res.Compatible = true
		c.logger.Info().Int("warnings", res.WarningCount).Msg("notebook compatible")
		return res, nil
	}

	patched := nb.Clone()
	seen := map[string]bool{}
	for _, is := range issues {
		rule := ruleByID(is.Rule)
		cell := &patched.Cells[is.CellIndex]
		cell.Source = types.SplitSource(rule.apply(cell.Text()))
		if !seen[rule.id] {
			res.AppliedFixes = append(res.AppliedFixes, rule.id+": "+rule.fix)
			seen[rule.id] = true
		}
	}
	if !definesInColab(patched) {
		env := types.NewNotebookCell(types.CellCode, compatEnvCell)
		if patched.NBFormatMinor >= 5 {
			// nbformat 4.5 requires every cell to carry an id.
			env.Extra = map[string]json.RawMessage{"id": json.RawMessage(`"colab-env-detect"`)}
		}
		patched.Cells = append([]types.NotebookCell{env}, patched.Cells...)
		res.AppliedFixes = append(res.AppliedFixes, fixEnvDetectionAdded)
	}

	remaining := 0
	for _, is := range detect(patched) {
		if is.Severity == types.SeverityCritical {
			remaining++
		}
	}
	res.Patched = true
	res.Compatible = remaining == 0
	c.logger.Info().
		Int("critical", res.CriticalCount).
		Int("warnings", res.WarningCount).
		Int("remaining_critical", remaining).
		Msg("notebook patched")
	return res, patched
}

func detect(nb *types.Notebook) []types.CompatibilityIssue {
	issues := []types.CompatibilityIssue{}
	for i, cell := range nb.Cells {
		if cell.Kind != types.CellCode {
			continue
		}
		src := cell.Text()
		for _, r := range compatRules {
			if r.detect(src) {
				issues = append(issues, types.CompatibilityIssue{
					Rule:      r.id,
					Severity:  r.severity,
					CellIndex: i,
					Message:   r.message,
					Fix:       r.fix,
				})
			}
		}
	}
	return issues
}

func definesInColab(nb *types.Notebook) bool {
	for _, cell := range nb.Cells {
		if cell.Kind == types.CellCode && inColabDefRe.MatchString(cell.Text()) {
			return true
		}
	}
	return false
}

func ruleByID(id string) compatRule {
	for _, r := range compatRules {
		if r.id == id {
			return r
		}
	}
	return compatRule{apply: func(s string) string { return s }}
}
