// Package environment identifies which deployment tier the service runs
// in and propagates that through contexts, HTTP requests and structured
// logs. Parse normalizes raw configuration values, Middleware stamps the
// environment onto request contexts, and LoggerExtractor surfaces it as
// a log attribute.
package environment
