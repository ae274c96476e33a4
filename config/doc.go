// Package config loads the runtime configuration of studymesh.
//
// Sources, lowest precedence first: built-in defaults, an optional YAML
// file, a .env file (never overriding variables already set) and the
// process environment. Every key can be set through a STUDYMESH_ variable
// whose name is the key path in upper case with dots replaced by
// underscores, e.g. STUDYMESH_RETRY_MAX_ATTEMPTS. Provider API keys are also
// read from GOOGLE_API_KEY, OPENAI_API_KEY and ANTHROPIC_API_KEY.
package config
