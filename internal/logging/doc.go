// Package logging provides structured, redaction-aware logging for the
// retrieval core. Logs are JSON by default and never include request or
// response bodies, API keys, or other secrets — see Setup and the
// gateway package's log helpers.
package logging
