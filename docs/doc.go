// Package docs provides generated OpenAPI documentation.
//
// Itihasa API
//
//	@title			Itihasa API
//	@version		1.0
//	@description	Quiz and chapter study API over imported Ramayana content.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/itihasa
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/itihasa/serve.go -o ./swagger --parseDependency --parseInternal
