// Package config loads watchwire's TOML configuration.
//
// Load reads ~/.config/watchwire/config.toml unless a path is given. A
// missing file is not an error: Default values are used. Blank values in
// the file also fall back to defaults, and paths accept a leading tilde.
//
// Example:
//
//	endpoint = "ws://localhost:8080"
//	log_level = "info"
//	theme = "Nightfox"          # Nightfox, Kanagawa or Slate
//
//	[forward]
//	target = "log"          # log, completion or none
//	cache_path = "~/.local/share/watchwire/cache.db"
//	resume = false
//
//	[completion]
//	api_base = "https://api.openai.com/v1"
//	model = "gpt-4o-mini"
//	api_key_env = "OPENAI_API_KEY"
//
//	[serve]
//	listen = "127.0.0.1:8080"
//	root = "."
//	ignore = ["**/.git/**"]
//
// The WATCHWIRE_ENDPOINT environment variable overrides endpoint.
package config
