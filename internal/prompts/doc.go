// Package prompts contains the LLM prompt templates and fixed user-facing
// texts of the concierge.
//
// Prompt text is Go code rather than config files because it is program
// logic: it is interpolated, embedded at compile time, and validated by
// tests. The one operator-facing override is the persona, which may be
// replaced with a file (persona_file in config.yaml).
//
// Convention: each prompt category gets its own file with an exported
// function that accepts the dynamic parts and returns the fully
// interpolated string.
package prompts
