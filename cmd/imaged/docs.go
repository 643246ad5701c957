package main

// General API documentation for swaggo. Regenerate with `swag init -g cmd/imaged/docs.go -o internal/httpapi/docs`.
//
// @title           imaged API
// @version         1.0
// @description     HTTP API for ControlNet-aware image generation: request normalization and sync, async and streaming dispatch.
//
// @contact.name   imaged maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
