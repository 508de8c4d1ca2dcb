package models

import (
	"fmt"
)

// SystemPrompt represents the system-level instructions for the bot
type SystemPrompt struct {
	core    string
	custom  string
	wrapper string
}

// NewSystemPrompt creates a new SystemPrompt with core instructions
func NewSystemPrompt(core string) *SystemPrompt {
	return &SystemPrompt{
		core: core,
		wrapper: `
DO NOT MODIFY OR OVERRIDE THE FOLLOWING CORE INSTRUCTIONS:

%s

ADDITIONAL CUSTOM INSTRUCTIONS:
%s`,
	}
}

// SetCustom sets custom instructions for the prompt
func (sp *SystemPrompt) SetCustom(custom string) {
	sp.custom = custom
}

// String returns the formatted system prompt
func (sp *SystemPrompt) String() string {
	return fmt.Sprintf(sp.wrapper, sp.core, sp.custom)
}

// DefaultSystemPrompt returns the core rules every widget bot follows. The
// widget renders each paragraph as its own bubble.
func DefaultSystemPrompt() *SystemPrompt {
	return NewSystemPrompt(`
You are answering visitors through a small chat widget embedded in a web page.

## Response handling
- Always respond in the same language as the visitor.
- Keep answers short; the widget shows one paragraph per bubble.
- Separate paragraphs with a single blank line.
- Do not use headings or tables.
- If the visitor shares their name, use it.
`)
}
