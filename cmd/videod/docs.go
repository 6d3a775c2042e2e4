package main

// General API documentation for swaggo. Build with -tags=swagger to serve it.
//
// @title           videod API
// @version         1.0
// @description     HTTP API for resident-model video generation.
//
// @contact.name   videod maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
