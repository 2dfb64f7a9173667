// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package notebook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/notebook-engine/pkg/types"
)

// Cell tags stored in cell metadata so later stages can find structural cells.
const (
	TagScaffold        = "scaffold"
	TagTitle           = "title"
	TagObjectives      = "objectives"
	TagPrerequisites   = "prerequisites"
	TagSetup           = "setup"
	TagAssessment      = "assessment"
	TagTroubleshooting = "troubleshooting"
)

// SectionTag returns the tag carried by every cell of section n.
func SectionTag(n int) string { return fmt.Sprintf("section-%d", n) }

// pyLiteral renders v as a Python literal. JSON strings, lists, and numbers
// are valid Python.
func pyLiteral(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "None"
	}
	return string(b)
}

func brandingCell(version string) string {
	return fmt.Sprintf("> Generated by notebook-engine %s. Run the setup cells in order before the lesson.\n", version)
}

const envDetectCell = `# Environment detection
import os
import sys

IN_COLAB = 'google.colab' in sys.modules
env_label = 'Google Colab' if IN_COLAB else 'Local'
print(f'Environment: {env_label}')

if IN_COLAB:
    try:
        from google.colab import output
        output.enable_custom_widget_manager()
    except Exception:
        pass
`

const secretsPrimerCell = `## API keys

This notebook reads credentials from environment variables. Locally, put them in a ` + "`.env`" + ` file next to the notebook:

` + "```" + `
OPENAI_API_KEY=...
POE_API_KEY=...
` + "```" + `

In Colab, store them under Secrets or enter them when prompted. Never paste keys into code cells.
`

const dotenvCell = `# Load .env and prompt for missing keys
import os
import sys
import subprocess
from pathlib import Path
from getpass import getpass

try:
    import dotenv  # type: ignore
except ImportError:
    if 'IN_COLAB' in globals() and IN_COLAB:
        get_ipython().run_line_magic('pip', 'install -q python-dotenv>=1.0.0')
    else:
        subprocess.check_call([sys.executable, '-m', 'pip', 'install', '-q', 'python-dotenv>=1.0.0'])
    import dotenv  # type: ignore

for candidate in (Path('.env.local'), Path('.env')):
    if candidate.exists():
        dotenv.load_dotenv(dotenv_path=str(candidate))
        print(f'Loaded {candidate}')
        break

for key in ('OPENAI_API_KEY', 'POE_API_KEY'):
    if not os.environ.get(key):
        val = getpass(f'Enter {key} (hidden, press Enter to skip): ')
        if val:
            os.environ[key] = val
`

func providerCell(baseURL, model string) string {
	return fmt.Sprintf(`# Provider setup
import os

PROVIDER_BASE_URL = %s
MODEL = %s

try:
    from openai import OpenAI
except ImportError:
    import sys
    import subprocess
    if 'IN_COLAB' in globals() and IN_COLAB:
        get_ipython().run_line_magic('pip', 'install -q openai>=1.34.0')
    else:
        subprocess.check_call([sys.executable, '-m', 'pip', 'install', '-q', 'openai>=1.34.0'])
    from openai import OpenAI

api_key = os.environ.get('POE_API_KEY') or os.environ.get('OPENAI_API_KEY')
client = OpenAI(base_url=PROVIDER_BASE_URL, api_key=api_key) if api_key else None
print('Provider client ready' if client else 'No API key found; provider cells will be skipped')
`, pyLiteral(strings.TrimRight(baseURL, "/")+"/v1"), pyLiteral(model))
}

const smokeTestCell = `# Provider smoke test (1 token)
if client is not None:
    try:
        resp = client.chat.completions.create(
            model=MODEL,
            messages=[{'role': 'user', 'content': 'ping'}],
            max_tokens=1,
        )
        print('Smoke test ok:', resp.choices[0].message.content)
    except Exception as exc:
        print(f'Smoke test failed: {exc}')
else:
    print('Provider client not available; skipping smoke test')
`

const widgetBootstrapCell = `# Interactive widgets for knowledge checks
try:
    import ipywidgets  # type: ignore
    print('ipywidgets available')
except ImportError:
    import sys
    import subprocess
    if 'IN_COLAB' in globals() and IN_COLAB:
        get_ipython().run_line_magic('pip', 'install -q ipywidgets>=8.0.0')
    else:
        subprocess.check_call([sys.executable, '-m', 'pip', 'install', '-q', 'ipywidgets>=8.0.0'])
`

func installCell(requirements []string) string {
	return fmt.Sprintf(`# Install packages
import sys
import subprocess

REQUIREMENTS = %s

if 'IN_COLAB' in globals() and IN_COLAB:
    get_ipython().run_line_magic('pip', 'install -q ' + ' '.join(REQUIREMENTS))
else:
    subprocess.check_call([sys.executable, '-m', 'pip', 'install', '-q', *REQUIREMENTS])
print('Packages installed')
`, pyLiteral(requirements))
}

const knowledgeCheckIntro = "## Knowledge Check (Interactive)\n\nSelect an answer and click Grade to see feedback.\n"

const mcqHelperCell = `# MCQ helper (ipywidgets)
import ipywidgets as widgets
from IPython.display import display, Markdown

def render_mcq(question, options, correct_index, explanation):
    choices = [f'{chr(65 + i)}. {opt}' for i, opt in enumerate(options)]
    rb = widgets.RadioButtons(options=choices, index=None, description='')
    grade = widgets.Button(description='Grade', button_style='primary')
    feedback = widgets.HTML(value='')

    def on_grade(_):
        sel = rb.index
        if sel is None:
            feedback.value = '<p>Please select an option.</p>'
            return
        if sel == correct_index:
            feedback.value = '<p>Correct!</p>'
        else:
            feedback.value = f'<p>Incorrect. The answer is {chr(65 + correct_index)}.</p>'
        feedback.value += f'<div><em>Explanation:</em> {explanation}</div>'

    grade.on_click(on_grade)
    display(Markdown('### ' + question))
    display(rb, grade, feedback)
`

func mcqCall(a types.Assessment) string {
	return fmt.Sprintf("render_mcq(%s, %s, %d, %s)\n",
		pyLiteral(a.Question), pyLiteral(a.Options), a.CorrectIndex, pyLiteral(a.Explanation))
}

const troubleshootingCell = `## Troubleshooting Guide

### Common issues

1. **Out of memory**
   - Switch to a GPU runtime or a smaller model.
   - Restart the runtime and run the cells again from the top.

2. **Package installation problems**
   - Restart the runtime after installing packages.
   - Check that the install cell ran without errors.

3. **API calls fail**
   - Confirm your API key is set (re-run the .env cell).
   - Check your network connection and the provider status page.
   - Reduce request size if you hit rate limits.
`
