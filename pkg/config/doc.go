// Package config loads typed configuration structs from environment
// variables, with optional .env file support for local development.
//
// Each configuration type is parsed once per process and cached, so packages
// can call Load on their own config structs without coordinating startup
// order.
package config
